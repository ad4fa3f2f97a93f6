package config

import (
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ValueOf = &config{}

type config struct {
	ApiID    int32  `envconfig:"API_ID" required:"true"`
	ApiHash  string `envconfig:"API_HASH" required:"true"`
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`

	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"8080"`
	// URL is the externally visible base used when composing stream links.
	URL string `envconfig:"URL" default:""`

	SessionDir string `envconfig:"SESSION_DIR" default:"sessions"`
	// HomeDC is only a fallback: once the bot is up the home DC is read from
	// the server-provided config, and HomeDC is used when that reports 0.
	HomeDC   int  `envconfig:"HOME_DC" default:"0"`
	TestMode bool `envconfig:"TEST_MODE" default:"false"`

	Dev                 bool   `envconfig:"DEV" default:"false"`
	LogLevel            string `envconfig:"LOG_LEVEL" default:"info"`
	FloodWaitCapSeconds int    `envconfig:"FLOOD_WAIT_CAP_SECONDS" default:"30"`
}

func (c *config) loadFromEnvFile(log *zap.Logger) {
	envPath := filepath.Clean("tvsb.env")
	err := godotenv.Load(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Sugar().Infof("No %s file found, reading config from environment", envPath)
		} else {
			log.Fatal("Unknown error while parsing env file.", zap.Error(err))
		}
	}
}

func SetFlagsFromConfig(cmd *cobra.Command) {
	cmd.Flags().Int32("api-id", 0, "Telegram API ID")
	cmd.Flags().String("api-hash", "", "Telegram API Hash")
	cmd.Flags().String("bot-token", "", "Telegram Bot Token")
	cmd.Flags().IntP("port", "p", 8080, "HTTP server port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP bind address")
	cmd.Flags().String("url", "", "Externally visible base URL for stream links")
	cmd.Flags().String("session-dir", "sessions", "Directory for session files")
	cmd.Flags().Bool("dev", false, "Enable development mode")
}

func (c *config) loadConfigFromArgs(cmd *cobra.Command) {
	if cmd.Flags().Changed("api-id") {
		apiID, _ := cmd.Flags().GetInt32("api-id")
		os.Setenv("API_ID", strconv.Itoa(int(apiID)))
	}
	if cmd.Flags().Changed("api-hash") {
		apiHash, _ := cmd.Flags().GetString("api-hash")
		os.Setenv("API_HASH", apiHash)
	}
	if cmd.Flags().Changed("bot-token") {
		botToken, _ := cmd.Flags().GetString("bot-token")
		os.Setenv("BOT_TOKEN", botToken)
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		os.Setenv("PORT", strconv.Itoa(port))
	}
	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		os.Setenv("HOST", host)
	}
	if cmd.Flags().Changed("url") {
		url, _ := cmd.Flags().GetString("url")
		os.Setenv("URL", url)
	}
	if cmd.Flags().Changed("session-dir") {
		dir, _ := cmd.Flags().GetString("session-dir")
		os.Setenv("SESSION_DIR", dir)
	}
	if cmd.Flags().Changed("dev") {
		dev, _ := cmd.Flags().GetBool("dev")
		os.Setenv("DEV", strconv.FormatBool(dev))
	}
}

func (c *config) setupEnvVars(log *zap.Logger, cmd *cobra.Command) {
	c.loadFromEnvFile(log)
	c.loadConfigFromArgs(cmd)
	if err := envconfig.Process("", c); err != nil {
		log.Fatal("Error while parsing env variables", zap.Error(err))
	}

	if c.URL == "" {
		ip, err := getIP()
		if err != nil {
			log.Sugar().Warn("Can't detect an IP for stream links, using localhost")
		}
		c.URL = "http://" + ip + ":" + strconv.Itoa(c.Port)
		log.Sugar().Info("URL not set, automatically set to " + c.URL)
	}
}

func Load(log *zap.Logger, cmd *cobra.Command) {
	log = log.Named("Config")
	defer log.Info("Loaded config")
	ValueOf.setupEnvVars(log, cmd)
	if ValueOf.FloodWaitCapSeconds <= 0 {
		log.Sugar().Info("FLOOD_WAIT_CAP_SECONDS must be positive, defaulting to 30")
		ValueOf.FloodWaitCapSeconds = 30
	}
	if err := os.MkdirAll(ValueOf.SessionDir, os.ModePerm); err != nil {
		log.Fatal("Failed to create session directory", zap.Error(err))
	}
}

func getIP() (string, error) {
	ip, err := getInternalIP()
	if ip == "" {
		ip = "localhost"
	}
	if err != nil {
		return "localhost", err
	}
	return ip, nil
}

// https://stackoverflow.com/a/23558495/15807350
func getInternalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.New("no internet connection")
	}
	defer conn.Close()
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

func GetPublicIP() (string, error) {
	resp, err := http.Get("https://api.ipify.org?format=text")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	ip, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(ip), nil
}
