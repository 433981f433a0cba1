// Package config loads and validates the server's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Game      GameConfig      `yaml:"game"`
	Points    PointsConfig    `yaml:"points"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	WordBank  WordBankConfig  `yaml:"word_bank"`
	Store     StoreConfig     `yaml:"store"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// WebSocketConfig contains websocket transport configuration.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	PongWait        time.Duration `yaml:"pong_wait"`
	PingPeriod      time.Duration `yaml:"ping_period"`
	WriteWait       time.Duration `yaml:"write_wait"`
	SendBufferSize  int           `yaml:"send_buffer_size"`
}

// GameConfig holds the room engine's tunable constants (spec.md §6).
type GameConfig struct {
	MinPlayers          int           `yaml:"min_players"`
	MaxPlayers          int           `yaml:"max_players"`
	DrawTimeMin         int           `yaml:"draw_time_min"`
	DrawTimeMax         int           `yaml:"draw_time_max"`
	DefaultDrawTime     int           `yaml:"default_draw_time"`
	MaxRoundsLimit      int           `yaml:"max_rounds_limit"`
	DefaultRounds       int           `yaml:"default_rounds"`
	HintInterval        time.Duration `yaml:"hint_interval"`
	TurnEndDelay        time.Duration `yaml:"turn_end_delay"`
	StartCountdown      time.Duration `yaml:"start_countdown"`
	AutoPickTimeout     time.Duration `yaml:"auto_pick_timeout"`
	AllGuessedSettle    time.Duration `yaml:"all_guessed_settle"`
	EmptyRoomGrace      time.Duration `yaml:"empty_room_grace"`
	StoreRetention      time.Duration `yaml:"store_retention"`
	ChatHistoryCap      int           `yaml:"chat_history_cap"`
	MaxNameLength       int           `yaml:"max_name_length"`
	MaxChatLength       int           `yaml:"max_chat_length"`
	KickRejoinCooldown  time.Duration `yaml:"kick_rejoin_cooldown"`
	RoomCleanupInterval time.Duration `yaml:"room_cleanup_interval"`
	InboxSize           int           `yaml:"inbox_size"`
}

// PointsConfig holds the scoring formula's constants (spec.md §4.4/§8.4).
type PointsConfig struct {
	BaseGuessPoints    int `yaml:"base_guess_points"`
	MaxTimeBonus       int `yaml:"max_time_bonus"`
	MaxOrderBonus      int `yaml:"max_order_bonus"`
	OrderBonusStep     int `yaml:"order_bonus_step"`
	DrawerBonusPerGuess int `yaml:"drawer_bonus_per_guesser"`
}

// RateLimitConfig contains request rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WordBankConfig maps theme names to the JSON word-list file backing them.
type WordBankConfig struct {
	ThemeFiles   map[string]string `yaml:"theme_files"`
	WordsPerTurn int               `yaml:"words_per_turn"`
}

// StoreConfig configures the persistence store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "memory"
	DSN    string `yaml:"dsn"`
}

// AppConfig is the process-wide configuration, set once by LoadConfig.
var AppConfig *Config

// LoadConfig reads configPath, falling back to GetDefaultConfig on any
// read/parse error, then validates the result.
func LoadConfig(configPath string) (*Config, error) {
	config, err := loadConfigFromFile(configPath)
	if err != nil {
		fmt.Printf("config: could not load %s, using defaults: %v\n", configPath, err)
		config = GetDefaultConfig()
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	AppConfig = config
	return config, nil
}

func loadConfigFromFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &config, nil
}

// GetDefaultConfig returns the spec's literal tunable-constant defaults.
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			MaxMessageSize:  4096,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			WriteWait:       10 * time.Second,
			SendBufferSize:  32,
		},
		Game: GameConfig{
			MinPlayers:          2,
			MaxPlayers:          10,
			DrawTimeMin:         30,
			DrawTimeMax:         180,
			DefaultDrawTime:     80,
			MaxRoundsLimit:      10,
			DefaultRounds:       3,
			HintInterval:        20 * time.Second,
			TurnEndDelay:        5 * time.Second,
			StartCountdown:      3 * time.Second,
			AutoPickTimeout:     15 * time.Second,
			AllGuessedSettle:    1 * time.Second,
			EmptyRoomGrace:      2 * time.Minute,
			StoreRetention:      30 * time.Minute,
			ChatHistoryCap:      100,
			MaxNameLength:       20,
			MaxChatLength:       200,
			KickRejoinCooldown:  60 * time.Second,
			RoomCleanupInterval: 1 * time.Minute,
			InboxSize:           64,
		},
		Points: PointsConfig{
			BaseGuessPoints:     100,
			MaxTimeBonus:        100,
			MaxOrderBonus:       100,
			OrderBonusStep:      20,
			DrawerBonusPerGuess: 25,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
			BurstSize:         20,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:8080",
			},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
		},
		WordBank: WordBankConfig{
			ThemeFiles: map[string]string{
				"default": "data/words_default.json",
			},
			WordsPerTurn: 3,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	g := config.Game
	if g.MinPlayers < 2 {
		return fmt.Errorf("min players must be at least 2")
	}
	if g.MaxPlayers < g.MinPlayers {
		return fmt.Errorf("max players cannot be less than min players")
	}
	if g.DrawTimeMin < 1 || g.DrawTimeMax < g.DrawTimeMin {
		return fmt.Errorf("invalid draw time range")
	}
	if g.DefaultDrawTime < g.DrawTimeMin || g.DefaultDrawTime > g.DrawTimeMax {
		return fmt.Errorf("default draw time out of range")
	}
	if g.MaxRoundsLimit < 1 {
		return fmt.Errorf("max rounds limit must be positive")
	}
	if g.ChatHistoryCap <= 0 {
		return fmt.Errorf("chat history cap must be positive")
	}
	if g.MaxNameLength <= 0 || g.MaxChatLength <= 0 {
		return fmt.Errorf("name/chat length limits must be positive")
	}

	if config.Points.BaseGuessPoints <= 0 {
		return fmt.Errorf("base guess points must be positive")
	}

	if config.WebSocket.ReadBufferSize <= 0 || config.WebSocket.WriteBufferSize <= 0 {
		return fmt.Errorf("websocket buffer sizes must be positive")
	}
	if config.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket max message size must be positive")
	}

	if config.RateLimit.RequestsPerMinute <= 0 || config.RateLimit.BurstSize <= 0 {
		return fmt.Errorf("rate limit values must be positive")
	}

	if len(config.WordBank.ThemeFiles) == 0 {
		return fmt.Errorf("word bank must declare at least one theme")
	}

	return nil
}

// GetConfig returns the process-wide config, lazily defaulting it.
func GetConfig() *Config {
	if AppConfig == nil {
		AppConfig = GetDefaultConfig()
	}
	return AppConfig
}

// GetServerAddress returns the listen address derived from Server.Port.
func GetServerAddress() string {
	config := GetConfig()
	if config.Server.Port[0] != ':' {
		return ":" + config.Server.Port
	}
	return config.Server.Port
}
