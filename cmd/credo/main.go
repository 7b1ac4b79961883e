package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"

	"github.com/credo-protocol/credo-engine/internal/chain"
	"github.com/credo-protocol/credo-engine/internal/configs"
	"github.com/credo-protocol/credo-engine/internal/metrics"
	"github.com/credo-protocol/credo-engine/internal/metrics/source/blockscout"
	"github.com/credo-protocol/credo-engine/internal/metrics/source/noderpc"
	"github.com/credo-protocol/credo-engine/internal/oracle"
	"github.com/credo-protocol/credo-engine/internal/scoring"
	"github.com/credo-protocol/credo-engine/internal/server"
	"github.com/credo-protocol/credo-engine/internal/storage"
)

var (
	flagconf string

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.json", "config path, eg: -conf config.json")
}

func main() {
	flag.Parse()

	// .env 可缺省
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", "err", err)
	}

	// 加载配置
	config := &configs.Config{}
	configFile, err := os.ReadFile(flagconf)
	if err != nil {
		log.Warn("Error reading config file, using defaults", "err", err)
	} else if err := json.Unmarshal(configFile, config); err != nil {
		log.Error("Error parsing config file", "err", err)
		return
	}
	config.ApplyDefaults()
	config.ApplyEnv()

	log.Debug("Loaded config", "listen_addr", config.ListenAddr, "rpc_url", config.Chain.RPCURL)

	// 链上客户端
	client, err := chain.Dial(config.Chain.RPCURL)
	if err != nil {
		log.Error("Error connecting to chain RPC", "err", err)
		return
	}
	defer client.Close()

	log.Debug("init chain client")

	// 指标采集: 浏览器优先, 节点估算兜底
	aggregator := metrics.NewAggregator(
		[]metrics.TransactionSource{
			blockscout.NewSource(config.Explorer.BaseURL),
			noderpc.NewSource(client, config.Chain.SecondsPerBlock),
		},
		noderpc.NewBalances(client, config.Chain.Stablecoins),
		config.Chain.EthPriceUSD,
		config.Chain.LendingProtocols,
		log,
	)

	log.Debug("init aggregator")

	// 预测模型, 参数文件缺失时保持未训练状态
	model := scoring.NewModel(log)
	if config.Scoring.ModelArtifact != "" {
		if err := model.Load(config.Scoring.ModelArtifact); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn("model artifact not found, scoring rule-based only", "path", config.Scoring.ModelArtifact)
			} else {
				log.Error("Error loading model artifact", "err", err)
				return
			}
		}
	}

	// 签名与上链, 未配置密钥时只跑评分
	var submitter server.OracleSubmitter
	if config.Oracle.PrivateKey != "" && config.Oracle.ContractAddress != "" {
		key, err := crypto.HexToECDSA(config.Oracle.PrivateKey)
		if err != nil {
			log.Error("Error parsing oracle private key", "err", err)
			return
		}

		contract, err := oracle.NewContract(config.Oracle.ContractAddress, client)
		if err != nil {
			log.Error("Error binding oracle contract", "err", err)
			return
		}

		chainID, err := client.ChainID(context.Background())
		if err != nil {
			log.Error("Error fetching chain id", "err", err)
			return
		}

		signer := oracle.NewSigner(key, contract, time.Duration(config.Oracle.ValidityMinutes)*time.Minute)
		submitter = oracle.NewSubmitter(signer, contract, client, key, chainID, oracle.SubmitterConfig{
			GasLimit:       config.Oracle.GasLimit,
			BatchSize:      config.Oracle.BatchSize,
			BatchPause:     time.Duration(config.Oracle.BatchPauseSeconds) * time.Second,
			ConfirmTimeout: time.Duration(config.Oracle.ConfirmTimeoutSeconds) * time.Second,
		}, log)

		log.Debug("init oracle submitter", "signer", signer.Address().Hex(), "contract", config.Oracle.ContractAddress)
	} else {
		log.Warn("oracle key or contract not configured, on-chain submission disabled")
	}

	// 可选持久化
	var store server.ScoreStore
	if config.Database.ConnStr != "" {
		storager, err := storage.NewPostgresStorage(config.Database.ConnStr)
		if err != nil {
			log.Error("Error creating storage", "err", err)
			return
		}
		defer storager.Close()
		store = storager

		log.Debug("init storager")
	}

	srv := server.New(aggregator, model, submitter, store, config.Scoring.Version, log)

	httpServer := &http.Server{
		Addr:    config.ListenAddr,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("listening", "addr", config.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "err", err)
	}
}
