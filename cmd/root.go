package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mango/internal/config"
	"mango/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mango",
	Short: "Mango - AI book reading & visualization service",
	Long: `Mango turns PDF books into analyzed text and AI-generated chapter videos.
It extracts book text, segments chapters, plans visual scenes with an LLM,
renders each scene on a ComfyUI server and stitches the clips with FFmpeg.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.mango")
	}

	// 环境变量设置
	viper.SetEnvPrefix("MANGO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	// 视频生成接口是同步执行的，写超时要覆盖整章的渲染时间
	viper.SetDefault("server.write_timeout", "60m")

	// AI
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.model", "gpt-4")
	viper.SetDefault("ai.options.temperature", 0.2)
	viper.SetDefault("ai.options.max_tokens", 8192)
	viper.SetDefault("ai.options.top_p", 1.0)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// ComfyUI 渲染服务
	viper.SetDefault("comfyui.host", "127.0.0.1:8188")
	viper.SetDefault("comfyui.workflow_json", "workflow_video.json")
	viper.SetDefault("comfyui.prompt_node_title", "Prompt_Input_Node")
	viper.SetDefault("comfyui.connect_timeout", "15s")
	viper.SetDefault("comfyui.render_timeout", "10m")
	viper.SetDefault("comfyui.download_timeout", "2m")
	viper.SetDefault("comfyui.clip_dir", "temp_clips")

	// 视频拼接
	viper.SetDefault("video.output_dir", "final_videos")
	viper.SetDefault("video.width", 1280)
	viper.SetDefault("video.height", 720)
	viper.SetDefault("video.fps", 24)
	viper.SetDefault("video.render_concurrency", 1)

	// 书库
	viper.SetDefault("library.dir", "library")

	// 存储
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.base_path", "data/storage")
	viper.SetDefault("storage.local.base_url", "http://localhost:8080/files")
	viper.SetDefault("storage.local.presign_expiry", 3600)
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
