package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SchedulingConfig 排产引擎配置
//
// 班次日历与效率反馈的全部可调参数：
//   - shift_start / shift_hours: 每个工作日的班次起点与时长
//   - work_days: 工作日（1=周一 … 7=周日）
//   - default_proficiency: 工人对某工序无熟练度记录时的默认等级
//   - efficiency_high / efficiency_low: 触发熟练度自动升降的滚动效率阈值（百分比）
//   - efficiency_window: 滚动效率取最近 N 条完工记录
//   - sewing_any_step: true 时允许缝纫技能工人被派到非缝纫工序
type SchedulingConfig struct {
	ShiftStart          string  `mapstructure:"shift_start"` // "08:00"
	ShiftHours          float64 `mapstructure:"shift_hours"`
	WorkDays            []int   `mapstructure:"work_days"`
	DefaultProficiency  int     `mapstructure:"default_proficiency"`
	EfficiencyHigh      float64 `mapstructure:"efficiency_high"`
	EfficiencyLow       float64 `mapstructure:"efficiency_low"`
	EfficiencyWindow    int     `mapstructure:"efficiency_window"`
	OvertimeHorizonDays int     `mapstructure:"overtime_horizon_days"`
	MaxScheduleDays     int     `mapstructure:"max_schedule_days"` // 单次排产最多向后排的天数
	SewingAnyStep       bool    `mapstructure:"sewing_any_step"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "shopfloor")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "America/Chicago")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("scheduling.shift_start", "08:00")
	v.SetDefault("scheduling.shift_hours", 8.0)
	v.SetDefault("scheduling.work_days", []int{1, 2, 3, 4, 5})
	v.SetDefault("scheduling.default_proficiency", 3)
	v.SetDefault("scheduling.efficiency_high", 110.0)
	v.SetDefault("scheduling.efficiency_low", 80.0)
	v.SetDefault("scheduling.efficiency_window", 5)
	v.SetDefault("scheduling.overtime_horizon_days", 14)
	v.SetDefault("scheduling.max_schedule_days", 365)
	v.SetDefault("scheduling.sewing_any_step", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Scheduling.ShiftHours <= 0 || c.Scheduling.ShiftHours > 24 {
		return fmt.Errorf("配置校验失败: scheduling.shift_hours 必须在 (0, 24] 之间")
	}
	if len(c.Scheduling.WorkDays) == 0 {
		return fmt.Errorf("配置校验失败: scheduling.work_days 不能为空")
	}
	for _, d := range c.Scheduling.WorkDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("配置校验失败: scheduling.work_days 取值必须在 1-7 之间")
		}
	}
	if c.Scheduling.DefaultProficiency < 1 || c.Scheduling.DefaultProficiency > 5 {
		return fmt.Errorf("配置校验失败: scheduling.default_proficiency 必须在 1-5 之间")
	}
	if c.Scheduling.EfficiencyLow >= c.Scheduling.EfficiencyHigh {
		return fmt.Errorf("配置校验失败: scheduling.efficiency_low 必须小于 efficiency_high")
	}
	if c.Scheduling.EfficiencyWindow <= 0 {
		return fmt.Errorf("配置校验失败: scheduling.efficiency_window 必须为正数")
	}
	return nil
}
