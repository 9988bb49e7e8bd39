package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	BaseURL       string // 邮件里的链接前缀
	DatabaseURL   string
	JWTSecret     string
	FrontOrigins  []string
	Debug         bool
	Redis         RedisConfig
	SMTP          SMTPConfig
	Firebase      FirebaseConfig
	Notifications NotificationConfig
	Streak        StreakConfig
	Comments      CommentConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// Enabled 未配置地址时只用进程内缓存
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != 0 && s.Username != "" && s.Password != "" && s.From != ""
}

type FirebaseConfig struct {
	CredentialsFile string
}

func (f FirebaseConfig) Enabled() bool { return f.CredentialsFile != "" }

// NotificationConfig 投递方式在启动时确定，运行期不可修改
type NotificationConfig struct {
	Async     bool
	QueueSize int
}

type StreakConfig struct {
	DailyTarget int
	AuraPerPoll int
}

type CommentConfig struct {
	MaxDepth int
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=keyopolls port=5432 sslmode=disable TimeZone=UTC"

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	// .env 不存在时直接使用系统环境变量
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("DATABASE_URL", defaultDSN)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("FE_ORIGINS", "http://localhost:3000")
	v.SetDefault("DEBUG", false)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_TTL", "10m")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 0)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("FIREBASE_CREDENTIALS", "")
	v.SetDefault("NOTIFICATIONS_ASYNC", true)
	v.SetDefault("NOTIFICATIONS_QUEUE_SIZE", 1000)
	v.SetDefault("STREAK_DAILY_TARGET", 5)
	v.SetDefault("AURA_PER_POLL", 1)
	v.SetDefault("COMMENTS_MAX_DEPTH", 6)

	cfg := &Config{
		Port:         v.GetString("PORT"),
		BaseURL:      strings.TrimRight(v.GetString("APP_URL"), "/"),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		JWTSecret:    v.GetString("JWT_SECRET"),
		FrontOrigins: splitOrigins(v.GetString("FE_ORIGINS")),
		Debug:        v.GetBool("DEBUG"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			TTL:      v.GetDuration("REDIS_TTL"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASS"),
			From:     v.GetString("SMTP_FROM"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: v.GetString("FIREBASE_CREDENTIALS"),
		},
		Notifications: NotificationConfig{
			Async:     v.GetBool("NOTIFICATIONS_ASYNC"),
			QueueSize: v.GetInt("NOTIFICATIONS_QUEUE_SIZE"),
		},
		Streak: StreakConfig{
			DailyTarget: v.GetInt("STREAK_DAILY_TARGET"),
			AuraPerPoll: v.GetInt("AURA_PER_POLL"),
		},
		Comments: CommentConfig{
			MaxDepth: v.GetInt("COMMENTS_MAX_DEPTH"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ";") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
