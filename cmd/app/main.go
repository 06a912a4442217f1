package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/hubertat/servicemaker"

	"github.com/hubertat/ledkit"
)

const defaultSyncInterval = "330ms"

var (
	Version string
	Build   string

	config       = flag.String("config", "config.json", "path of the configuration file")
	flagInstall  = flag.Bool("install", false, "Install service in os")
	syncInterval = flag.String("sync", defaultSyncInterval, "HomeKit mirror sync interval (time.Duration)")

	ledkitService = servicemaker.ServiceMaker{
		User:               "ledkit",
		UserGroups:         []string{"gpio"},
		ServicePath:        "/etc/systemd/system/ledkit.service",
		ServiceDescription: "ledkit service: GPIO switch driven LED indicator bank. github.com/hubertat/ledkit",
		ExecDir:            "/srv/ledkit",
		ExecName:           "ledkit",
	}
)

func main() {
	log.Printf("ledkit %s started\n", Version)
	flag.Parse()

	if *flagInstall {
		err := ledkitService.InstallService()
		if err != nil {
			panic(err)
		} else {
			log.Println("service installed!")
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncDuration, err := time.ParseDuration(*syncInterval)
	if err != nil {
		panic(err)
	}

	lk := &ledkit.LedKit{}
	configFile, err := os.Open(*config)
	if err == nil {
		cBuff, err := io.ReadAll(configFile)
		if err != nil {
			log.Fatalf("failed reading config file: %v\n", err)
		}

		err = json.Unmarshal(cBuff, lk)
		if err != nil {
			log.Fatalf("failed unmarshalling json config: %v", err)
		}
	} else {
		log.Fatalf("can't find/open config file (%s), will terminate. Reason: \n%v\n", *config, err)
	}

	log.Println("will init ledkit drivers...")
	err = lk.InitDrivers(ctx)
	defer lk.Close()
	if err != nil {
		panic(err)
	}

	log.Println("will init ledkit IOs...")
	err = lk.InitIos()
	if err != nil {
		panic(err)
	}

	lk.PrintIoStatus(os.Stdout)

	if len(lk.MqttBroker) > 0 {
		log.Println("will connect to mqtt broker...")
		err = lk.InitMqtt()
		if err != nil {
			log.Printf("mqtt init returned error: %v\n we will proceed without mqtt...", err)
		}
	}

	err = lk.StartStatusServer()
	if err != nil {
		log.Printf("status server returned error: %v\n we will proceed without it...", err)
	}

	if len(lk.HkPin) == 8 {
		log.Println("Starting with HomeKit server")

		go lk.StartTicker(syncDuration)
		log.Fatal(lk.StartHomeKit(ctx, Version))
	} else {
		log.Println("HomeKit not configured, disabled")
		lk.StartTicker(syncDuration)
	}
}
