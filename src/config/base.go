package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/stake-plus/mod-review/src/data"
	"gorm.io/gorm"
)

// Base contains common configuration fields
type Base struct {
	Token    string
	GuildID  string
	MySQLDSN string
}

// LoadDotEnv reads .env style files into the process environment. Missing files are skipped,
// existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// LoadBase loads common configuration (discord token, guild ID, MySQL DSN).
// db may be nil when settings are not kept in MySQL; when given, an unreadable
// settings table is an error rather than a silent fall back to env.
func LoadBase(db *gorm.DB) (Base, error) {
	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			return Base{}, fmt.Errorf("load settings: %w", err)
		}
	}

	return Base{
		Token:    GetSetting("discord_token", "DISCORD_TOKEN", ""),
		GuildID:  GetSetting("guild_id", "GUILD_ID", ""),
		MySQLDSN: os.Getenv("MYSQL_DSN"),
	}, nil
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return strings.TrimSpace(val)
}

func getBoolSetting(settingKey, envKey string, defaultValue bool) bool {
	v := GetSetting(settingKey, envKey, "")
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v == "1"
	}
	return b
}

func getIntSetting(settingKey, envKey string, defaultValue int) int {
	if v := GetSetting(settingKey, envKey, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatSetting(settingKey, envKey string, defaultValue float64) float64 {
	if v := GetSetting(settingKey, envKey, ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationSetting(settingKey, envKey string, defaultValue time.Duration) time.Duration {
	if v := GetSetting(settingKey, envKey, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
