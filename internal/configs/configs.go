package configs

import "os"

type Config struct {
	// 基础配置
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	Chain    ChainConfig    `json:"chain" yaml:"chain"`
	Explorer ExplorerConfig `json:"explorer" yaml:"explorer"`
	Oracle   OracleConfig   `json:"oracle" yaml:"oracle"`
	Scoring  ScoringConfig  `json:"scoring" yaml:"scoring"`

	Database Database `json:"database" yaml:"database"`
}

type ChainConfig struct {
	RPCURL           string            `json:"rpc_url" yaml:"rpc_url"`                     // 节点RPC地址
	SecondsPerBlock  int               `json:"seconds_per_block" yaml:"seconds_per_block"` // 用于回推钱包年龄的出块间隔
	EthPriceUSD      float64           `json:"eth_price_usd" yaml:"eth_price_usd"`         // 固定参考价
	Stablecoins      map[string]string `json:"stablecoins" yaml:"stablecoins"`             // symbol -> 合约地址
	LendingProtocols []string          `json:"lending_protocols" yaml:"lending_protocols"` // 借贷协议合约地址, 用于清算识别
}

type ExplorerConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"` // Blockscout API 地址
}

type OracleConfig struct {
	ContractAddress       string `json:"contract_address" yaml:"contract_address"`
	PrivateKey            string `json:"-" yaml:"-"` // env only, never from file
	ValidityMinutes       int    `json:"validity_minutes" yaml:"validity_minutes"`
	GasLimit              uint64 `json:"gas_limit" yaml:"gas_limit"`
	BatchSize             int    `json:"batch_size" yaml:"batch_size"`
	BatchPauseSeconds     int    `json:"batch_pause_seconds" yaml:"batch_pause_seconds"`
	ConfirmTimeoutSeconds int    `json:"confirm_timeout_seconds" yaml:"confirm_timeout_seconds"`
}

type ScoringConfig struct {
	ModelArtifact string `json:"model_artifact" yaml:"model_artifact"` // 预测模型参数文件, 可缺省
	Version       int    `json:"version" yaml:"version"`               // 算法版本号, 随签名上链
}

type Database struct {
	ConnStr string `json:"conn_str" yaml:"conn_str"` // 数据库连接字符串
}

// ApplyDefaults fills unset fields with the defaults the service was built
// against (Morph Holesky testnet).
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}
	if c.Chain.RPCURL == "" {
		c.Chain.RPCURL = "https://rpc-holesky.morphl2.io"
	}
	if c.Chain.SecondsPerBlock <= 0 {
		c.Chain.SecondsPerBlock = 12
	}
	if c.Chain.EthPriceUSD <= 0 {
		c.Chain.EthPriceUSD = 2000
	}
	if len(c.Chain.Stablecoins) == 0 {
		c.Chain.Stablecoins = map[string]string{
			"USDT": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
			"USDC": "0xA0b86a33E6441b8435b662303c0f479c7e1d5916",
			"DAI":  "0x6B175474E89094C44Da98b954EedeAC495271d0F",
			"BUSD": "0x4Fabb145d64652a948d72533023f6E7A623C7C53",
			"FRAX": "0x853d955aCEf822Db058eb8505911ED77F175b99e",
		}
	}
	if c.Explorer.BaseURL == "" {
		c.Explorer.BaseURL = "https://explorer-holesky.morphl2.io/api"
	}
	if c.Oracle.ValidityMinutes <= 0 {
		c.Oracle.ValidityMinutes = 60
	}
	if c.Oracle.GasLimit == 0 {
		c.Oracle.GasLimit = 200000
	}
	if c.Oracle.BatchSize <= 0 {
		c.Oracle.BatchSize = 10
	}
	if c.Oracle.BatchPauseSeconds <= 0 {
		c.Oracle.BatchPauseSeconds = 2
	}
	if c.Oracle.ConfirmTimeoutSeconds <= 0 {
		c.Oracle.ConfirmTimeoutSeconds = 90
	}
	if c.Scoring.Version <= 0 {
		c.Scoring.Version = 2
	}
}

// ApplyEnv overlays secret material and deployment overrides from the
// environment. Call after godotenv has loaded the env file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("RPC_URL"); v != "" {
		c.Chain.RPCURL = v
	}
	if v := os.Getenv("SCORE_ORACLE_ADDRESS"); v != "" {
		c.Oracle.ContractAddress = v
	}
	if v := os.Getenv("ORACLE_PRIVATE_KEY"); v != "" {
		c.Oracle.PrivateKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.ConnStr = v
	}
}
