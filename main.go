package main

import (
	"flag"

	"paygate/config"
	"paygate/internal"
	"paygate/services"
)

func main() {

	logger := internal.NewLogger("main", false, nil)

	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	logger.Info("using config file: " + *configPath)
	conf, err := config.GetConfig(*configPath)
	if err != nil {
		logger.Error("boot", err)
		return
	}

	var database services.Database
	if conf.Mongo.Enabled {
		mongo, err := internal.NewMongoClient(conf)
		if err != nil {
			logger.Error("mongo client", err)
			return
		}
		database = mongo
		logger.Info("mongo client initialized")
	}

	gateway := internal.NewGateway(conf)
	gateway.SetLogger(internal.NewLogger("gateway", conf.IsDebug, database))

	processor := internal.NewProcessor(conf)
	processor.SetLogger(internal.NewLogger("processor", conf.IsDebug, database))
	processor.SetDatabase(database)
	processor.SetGateway(gateway)

	server := internal.NewServer(conf)
	server.SetLogger(internal.NewLogger("server", conf.IsDebug, database))
	server.SetProcessor(processor)
	server.SetDatabase(database)

	err = server.Start()
	if err != nil {
		logger.Error("server start", err)
		return
	}

}
