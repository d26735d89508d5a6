package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// FeeRatioMax caps maker and taker ratios (over a 10000 scale, so 25%).
const FeeRatioMax int64 = 2500

type Node struct {
	DataDir     string
	APIAddr     string
	LogFile     string // empty logs to stdout only
	LogLevel    string
	JournalFile string

	// Matcher is recorded on deals from the node's automatic rounds.
	Matcher       common.Address
	MatchInterval time.Duration // 0 disables the auto matcher
	MatchMaxCount int

	CleanInterval time.Duration // 0 disables the cleaner
	CleanMaxCount int

	AllowedOrigins []string
}

// Dex is the exchange configuration. The value loaded from the environment
// seeds the store on first start; afterwards the stored copy wins and only
// SetConfig changes it.
type Dex struct {
	Admin             common.Address `json:"admin"`
	Settler           common.Address `json:"settler"` // zero lets the admin run matching rounds
	FeeCollector      common.Address `json:"fee_collector"`
	MakerFeeRatio     int64          `json:"maker_fee_ratio"`
	TakerFeeRatio     int64          `json:"taker_fee_ratio"`
	MaxMatchCount     int            `json:"max_match_count"` // deals matched at placement, 0 = none
	AdminSignRequired bool           `json:"admin_sign_required"`
	OldDataOutdate    time.Duration  `json:"old_data_outdate"`
	DustMatch         bool           `json:"dust_match"`
}

func (d Dex) Validate() error {
	if d.Admin == (common.Address{}) {
		return fmt.Errorf("admin address is required")
	}
	if d.FeeCollector == (common.Address{}) {
		return fmt.Errorf("fee collector address is required")
	}
	if err := validateRatio("maker", d.MakerFeeRatio); err != nil {
		return err
	}
	if err := validateRatio("taker", d.TakerFeeRatio); err != nil {
		return err
	}
	if d.MaxMatchCount < 0 {
		return fmt.Errorf("max match count must not be negative")
	}
	if d.OldDataOutdate <= 0 {
		return fmt.Errorf("old data outdate must be positive")
	}
	return nil
}

// MatchAuthority is the account allowed to run matching rounds.
func (d Dex) MatchAuthority() common.Address {
	if d.Settler == (common.Address{}) {
		return d.Admin
	}
	return d.Settler
}

func validateRatio(name string, r int64) error {
	if r < 0 || r > FeeRatioMax {
		return fmt.Errorf("%s fee ratio %d out of range [0, %d]", name, r, FeeRatioMax)
	}
	return nil
}

type Kafka struct {
	Brokers   []string // empty disables deal publishing
	DealTopic string
}

// Domain is the EIP-712 signing domain of API requests.
type Domain struct {
	Name    string
	Version string
	ChainID int64
}

type Config struct {
	Node   Node
	Dex    Dex
	Kafka  Kafka
	Domain Domain
}

func Default() Config {
	return Config{
		Node: Node{
			DataDir:        "data/dex",
			APIAddr:        ":8080",
			LogFile:        "data/node.log",
			LogLevel:       "info",
			JournalFile:    "data/journal.log",
			MatchInterval:  500 * time.Millisecond,
			MatchMaxCount:  100,
			CleanInterval:  time.Hour,
			CleanMaxCount:  1000,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Dex: Dex{
			MakerFeeRatio:  4,
			TakerFeeRatio:  8,
			MaxMatchCount:  10,
			OldDataOutdate: 30 * 24 * time.Hour,
			DustMatch:      true,
		},
		Kafka: Kafka{
			DealTopic: "dex.deals",
		},
		Domain: Domain{
			Name:    "HyperDex",
			Version: "1",
			ChainID: 1337,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		cfg.Node.LogFile = v
	}
	cfg.Node.LogLevel = getEnv("LOG_LEVEL", cfg.Node.LogLevel)
	cfg.Node.JournalFile = getEnv("JOURNAL_FILE", cfg.Node.JournalFile)
	if v := os.Getenv("MATCHER_ADDRESS"); common.IsHexAddress(v) {
		cfg.Node.Matcher = common.HexToAddress(v)
	}
	if ms, ok := getInt("MATCH_INTERVAL_MS"); ok {
		cfg.Node.MatchInterval = time.Duration(ms) * time.Millisecond
	}
	if n, ok := getInt("MATCH_MAX_COUNT"); ok {
		cfg.Node.MatchMaxCount = n
	}
	if sec, ok := getInt("CLEAN_INTERVAL_SEC"); ok {
		cfg.Node.CleanInterval = time.Duration(sec) * time.Second
	}
	if n, ok := getInt("CLEAN_MAX_COUNT"); ok {
		cfg.Node.CleanMaxCount = n
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Node.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("DEX_ADMIN"); common.IsHexAddress(v) {
		cfg.Dex.Admin = common.HexToAddress(v)
	}
	if v := os.Getenv("DEX_SETTLER"); common.IsHexAddress(v) {
		cfg.Dex.Settler = common.HexToAddress(v)
	}
	if v := os.Getenv("DEX_FEE_COLLECTOR"); common.IsHexAddress(v) {
		cfg.Dex.FeeCollector = common.HexToAddress(v)
	}
	if n, ok := getInt("DEX_MAKER_FEE_RATIO"); ok {
		cfg.Dex.MakerFeeRatio = int64(n)
	}
	if n, ok := getInt("DEX_TAKER_FEE_RATIO"); ok {
		cfg.Dex.TakerFeeRatio = int64(n)
	}
	if n, ok := getInt("DEX_MAX_MATCH_COUNT"); ok {
		cfg.Dex.MaxMatchCount = n
	}
	if v := os.Getenv("DEX_ADMIN_SIGN_REQUIRED"); v != "" {
		cfg.Dex.AdminSignRequired = v == "true"
	}
	if sec, ok := getInt("DEX_OLD_DATA_OUTDATE_SEC"); ok {
		cfg.Dex.OldDataOutdate = time.Duration(sec) * time.Second
	}
	if v := os.Getenv("DEX_DUST_MATCH"); v != "" {
		cfg.Dex.DustMatch = v == "true"
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	cfg.Kafka.DealTopic = getEnv("KAFKA_DEAL_TOPIC", cfg.Kafka.DealTopic)

	cfg.Domain.Name = getEnv("EIP712_NAME", cfg.Domain.Name)
	cfg.Domain.Version = getEnv("EIP712_VERSION", cfg.Domain.Version)
	if n, ok := getInt("EIP712_CHAIN_ID"); ok {
		cfg.Domain.ChainID = int64(n)
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
