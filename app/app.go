package main

import (
	"flag"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	H "pitchmetrics/handler"
)

// ./app --env=development --api_http_port=8080 --db_host=localhost --db_port=5432 --db_user=pitchmetrics --db_name=pitchmetrics --db_pass=pitchmetrics --redis_host=localhost --redis_port=6379 --geo_loc_path=/usr/local/var/pitchmetrics/geolocation_data/GeoLite2-City.mmdb
func main() {

	env := flag.String("env", "development", "")
	port := flag.Int("api_http_port", 8080, "")

	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 5432, "")
	dbUser := flag.String("db_user", "pitchmetrics", "")
	dbName := flag.String("db_name", "pitchmetrics", "")
	dbPass := flag.String("db_pass", "pitchmetrics", "")

	redisHost := flag.String("redis_host", "localhost", "")
	redisPort := flag.Int("redis_port", 6379, "")

	geoLocFilePath := flag.String("geo_loc_path", "", "Optional GeoLite2 city database path")
	flag.Parse()

	config := &C.Configuration{
		Env:  *env,
		Port: *port,
		DBInfo: C.DBConf{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Name:     *dbName,
			Password: *dbPass,
		},
		RedisHost:       *redisHost,
		RedisPort:       *redisPort,
		GeolocationFile: *geoLocFilePath,
	}

	// Initialize configs and connections.
	err := C.Init(config)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize.")
		return
	}

	if !C.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// Initialize routes.
	H.InitRoutes(r)
	r.Run(":" + strconv.Itoa(C.GetConfig().Port))
}
