// config - источник загрузки конфигурации блога.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
//
// После загрузки конфиг валидируется (go-playground/validator + перекрёстные проверки).
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Prismic  PrismicConfig  `yaml:"prismic"`
	Listing  ListingConfig  `yaml:"listing"`
	Pages    PagesConfig    `yaml:"pages"`
	Comments CommentsConfig `yaml:"comments"`
	Cache    CacheConfig    `yaml:"cache"`
	Export   ExportConfig   `yaml:"export"`
	CORS     CORSConfig     `yaml:"cors"`
	Site     SiteConfig     `yaml:"site"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
}

// HTTPConfig — публичный HTTP-сервер.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"3000" validate:"required,numeric"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// PrismicConfig — репозиторий контента.
// Endpoint — корень REST API v2, например https://spacetraveling.cdn.prismic.io/api/v2.
type PrismicConfig struct {
	Endpoint     string        `yaml:"endpoint"      env:"PRISMIC_API_ENDPOINT" validate:"required,url"`
	AccessToken  string        `yaml:"access_token"  env:"PRISMIC_ACCESS_TOKEN"`
	DocumentType string        `yaml:"document_type" env:"PRISMIC_DOCUMENT_TYPE" env-default:"posts" validate:"required"`
	RefTTL       time.Duration `yaml:"ref_ttl"       env:"PRISMIC_REF_TTL"       env-default:"30s"`
	UserAgent    string        `yaml:"user_agent"    env:"PRISMIC_USER_AGENT"    env-default:"spacetraveling"`
}

// ListingConfig — главная страница.
type ListingConfig struct {
	PageSize int `yaml:"page_size" env:"LISTING_PAGE_SIZE" env-default:"1" validate:"min=1,max=100"`
}

// PagesConfig — пре-рендер и регенерация страниц.
type PagesConfig struct {
	// PrerenderLimit — сколько слагов прогревается на старте и попадает в экспорт.
	PrerenderLimit int           `yaml:"prerender_limit" env:"PAGES_PRERENDER_LIMIT" env-default:"10" validate:"min=0,max=100"`
	Revalidate     time.Duration `yaml:"revalidate"      env:"PAGES_REVALIDATE"      env-default:"12h"`
	HomeRevalidate time.Duration `yaml:"home_revalidate" env:"PAGES_HOME_REVALIDATE" env-default:"1h"`
	// FallbackWait — 0: блокирующий fallback; >0: после ожидания отдаётся заглушка загрузки.
	FallbackWait time.Duration `yaml:"fallback_wait" env:"PAGES_FALLBACK_WAIT" env-default:"0s"`
	Location     string        `yaml:"location"      env:"PAGES_LOCATION"      env-default:"America/Sao_Paulo"`
}

// Loc возвращает локацию отображения дат (UTC, если имя не распознано).
func (p PagesConfig) Loc() *time.Location {
	loc, err := time.LoadLocation(p.Location)
	if err != nil {
		return time.UTC
	}

	return loc
}

// CommentsConfig — виджет комментариев utterances. Пустой Repo отключает виджет.
type CommentsConfig struct {
	Repo      string `yaml:"repo"       env:"COMMENTS_REPO"`
	IssueTerm string `yaml:"issue_term" env:"COMMENTS_ISSUE_TERM" env-default:"pathname"`
	Theme     string `yaml:"theme"      env:"COMMENTS_THEME"      env-default:"github-dark"`
}

// CacheConfig — хранилище отрендеренных страниц.
type CacheConfig struct {
	Driver   string        `yaml:"driver"    env:"CACHE_DRIVER"    env-default:"memory" validate:"oneof=memory redis"`
	RedisURL string        `yaml:"redis_url" env:"CACHE_REDIS_URL"`
	Prefix   string        `yaml:"prefix"    env:"CACHE_PREFIX"    env-default:"blog:page:"`
	MaxAge   time.Duration `yaml:"max_age"   env:"CACHE_MAX_AGE"   env-default:"168h"`
}

// ExportConfig — статический экспорт страниц.
type ExportConfig struct {
	Sink string   `yaml:"sink" env:"EXPORT_SINK" env-default:"dir" validate:"oneof=dir s3"`
	Dir  string   `yaml:"dir"  env:"EXPORT_DIR"  env-default:"./out"`
	S3   S3Config `yaml:"s3"`
}

// S3Config — MinIO/S3 для экспорта.
type S3Config struct {
	Endpoint     string `yaml:"endpoint"      env:"S3_ENDPOINT"`
	RootUser     string `yaml:"root_user"     env:"S3_ROOT_USER"`
	RootPassword string `yaml:"root_password" env:"S3_ROOT_PASSWORD"`
	Bucket       string `yaml:"bucket"        env:"S3_BUCKET"`
	Prefix       string `yaml:"prefix"        env:"S3_PREFIX"`
}

// CORSConfig — CORS для /api.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

// SiteConfig — метаданные сайта.
// BasePath — префикс, под которым смонтирован блог ("/blog"); пусто — корень.
type SiteConfig struct {
	Title    string `yaml:"title"     env:"SITE_TITLE"     env-default:"spacetraveling"`
	BaseURL  string `yaml:"base_url"  env:"SITE_BASE_URL"  validate:"omitempty,url"`
	BasePath string `yaml:"base_path" env:"SITE_BASE_PATH" validate:"omitempty,startswith=/,endsnotwith=/"`
}

// TimeoutConfig — таймауты.
type TimeoutConfig struct {
	// Service — общий дедлайн входящего запроса.
	Service time.Duration `yaml:"service"    env:"TIMEOUT_SERVICE"    env-default:"15s"`
	// Upstream — дедлайн одного запроса к CMS.
	Upstream time.Duration `yaml:"upstream"   env:"TIMEOUT_UPSTREAM"   env-default:"10s"`
	// Regenerate — дедлайн фоновой регенерации страницы.
	Regenerate time.Duration `yaml:"regenerate" env:"TIMEOUT_REGENERATE" env-default:"30s"`
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) error {
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return fmt.Errorf("failed to overlay env: %w", err)
		}

		return nil
	}

	tryRead := func(p string) error {
		if p == "" {
			return fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		return readFile(p)
	}

	var err error
	switch envPath := os.Getenv("CONFIG_PATH"); {
	// 1) --config
	case path != "":
		err = tryRead(path)
	// 2) CONFIG_PATH
	case envPath != "":
		err = tryRead(envPath)
	default:
		// 3) ./local.yaml
		if _, statErr := os.Stat("local.yaml"); statErr == nil {
			err = readFile("local.yaml")
			break
		}

		// 4) только ENV
		if envErr := cleanenv.ReadEnv(&cfg); envErr != nil {
			err = fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", envErr)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

var validate = validator.New()

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Cache.Driver == "redis" && c.Cache.RedisURL == "" {
		return errors.New("cache.redis_url is required for redis driver")
	}

	if c.Export.Sink == "s3" && (c.Export.S3.Endpoint == "" || c.Export.S3.Bucket == "") {
		return errors.New("export.s3.endpoint and export.s3.bucket are required for s3 sink")
	}

	if _, err := time.LoadLocation(c.Pages.Location); err != nil {
		return fmt.Errorf("pages.location: %w", err)
	}

	return nil
}
