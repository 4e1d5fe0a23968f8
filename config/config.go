package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/RichardKnop/redsync"
	"github.com/gomodule/redigo/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	"github.com/kelseyhightower/envconfig"
	"github.com/oschwald/geoip2-golang"
	log "github.com/sirupsen/logrus"
)

const DEVELOPMENT = "development"

type DBConf struct {
	Host     string `envconfig:"DB_HOST"`
	Port     int    `envconfig:"DB_PORT"`
	User     string `envconfig:"DB_USER"`
	Name     string `envconfig:"DB_NAME"`
	Password string `envconfig:"DB_PASS"`
}

type Configuration struct {
	Env             string `envconfig:"ENV"`
	Port            int    `envconfig:"PORT"`
	DBInfo          DBConf
	RedisHost       string `envconfig:"REDIS_HOST"`
	RedisPort       int    `envconfig:"REDIS_PORT"`
	GeolocationFile string `envconfig:"GEO_LOC_PATH"`
}

type Services struct {
	Db          *gorm.DB
	GeoLocation *geoip2.Reader
	redisPool   *redis.Pool
	lockFactory *redsync.Redsync
}

var configuration *Configuration = nil
var services *Services = nil

func initLogging() {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if IsDevelopment() {
		log.SetLevel(log.DebugLevel)
	}
}

func initServices() error {
	db, err := gorm.Open("postgres", fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=disable",
		configuration.DBInfo.Host,
		configuration.DBInfo.Port,
		configuration.DBInfo.User,
		configuration.DBInfo.Name,
		configuration.DBInfo.Password))
	if err != nil {
		log.WithFields(log.Fields{"err": err}).Error("Failed Db Initialization")
		return err
	}
	// Connection Pooling and Logging.
	db.DB().SetMaxIdleConns(10)
	db.DB().SetMaxOpenConns(100)
	db.LogMode(IsDevelopment())
	log.Info("Db Service initialized")

	redisPool := &redis.Pool{
		MaxIdle:     10,
		MaxActive:   100,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp",
				fmt.Sprintf("%s:%d", configuration.RedisHost, configuration.RedisPort))
		},
	}
	log.Info("Redis pool initialized")

	var geolocation *geoip2.Reader
	if configuration.GeolocationFile != "" {
		// Ref: https://geolite.maxmind.com/download/geoip/database/GeoLite2-City.tar.gz
		geolocation, err = geoip2.Open(configuration.GeolocationFile)
		if err != nil {
			log.WithError(err).WithField("GeolocationFilePath",
				configuration.GeolocationFile).Error("Failed to initialize geolocation service")
			return err
		}
		log.Info("Geolocation service initialized")
	}

	services = &Services{
		Db:          db,
		GeoLocation: geolocation,
		redisPool:   redisPool,
		lockFactory: redsync.New([]redsync.Pool{redisPool}),
	}

	return nil
}

// Init initializes configuration and services. Environment variables
// prefixed PM_ override the values passed from flags.
func Init(config *Configuration) error {
	if configuration != nil {
		return fmt.Errorf("config already initialized")
	}

	if err := envconfig.Process("pm", config); err != nil {
		return err
	}
	configuration = config

	initLogging()
	return initServices()
}

func GetConfig() *Configuration {
	return configuration
}

func GetServices() *Services {
	return services
}

func IsDevelopment() bool {
	return strings.Compare(configuration.Env, DEVELOPMENT) == 0
}

// GetCacheRedisConnection returns a pooled connection. Callers must
// Close it.
func GetCacheRedisConnection() redis.Conn {
	return services.redisPool.Get()
}

// NewRecomputeMutex returns a distributed mutex serializing
// recomputations of the same funnel or cohort id across processes.
func NewRecomputeMutex(name string) *redsync.Mutex {
	return services.lockFactory.NewMutex(name,
		redsync.SetExpiry(10*time.Minute),
		redsync.SetTries(32),
		redsync.SetRetryDelay(500*time.Millisecond))
}
