package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tiiuae/backyardflyer/internal/config"
	"github.com/tiiuae/backyardflyer/internal/mavlink"
	"github.com/tiiuae/backyardflyer/internal/mission"
	"github.com/tiiuae/backyardflyer/internal/relay"
	"github.com/tiiuae/backyardflyer/internal/types"
	"github.com/tiiuae/backyardflyer/internal/watchdog"
)

var defaultFlagSet = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

func main() {
	cfg, err := config.Parse(defaultFlagSet, os.Args[1:])
	if err == flag.ErrHelp {
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	processLog := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "backyardflyer.log"),
		MaxSize:    10,
		MaxBackups: 3,
	}
	defer processLog.Close()
	log.SetOutput(io.MultiWriter(os.Stderr, processLog))

	// attach sigint & sigterm listeners
	terminationSignals := make(chan os.Signal, 1)
	signal.Notify(terminationSignals, syscall.SIGINT, syscall.SIGTERM)

	// quitFunc will be called when process is terminated
	ctx, quitFunc := context.WithCancel(context.Background())

	// wait group will make sure all goroutines have time to clean up
	var wg sync.WaitGroup

	receivers := []types.MessageHandler{types.NewLogger()}
	if cfg.StallTimeout > 0 {
		receivers = append(receivers, watchdog.New(cfg.StallTimeout))
	}
	if cfg.MQTTBroker != "" {
		mqttClient, err := relay.NewClient(cfg.MQTTBroker, cfg.DeviceID, cfg.PrivateKey)
		if err != nil {
			log.Fatal(err)
		}
		defer mqttClient.Disconnect(1000)
		receivers = append(receivers, relay.New(mqttClient, cfg.DeviceID))
	}

	messagebus := make(chan types.Message, 100)
	bus := types.NewMessageBus(messagebus, receivers...)

	wg.Add(1)
	go func() {
		defer wg.Done()
		bus.Run(ctx, &wg)
	}()

	link := mavlink.New(cfg.Host, cfg.Port,
		mavlink.WithPost(bus.Post),
		mavlink.WithDeviceID(cfg.DeviceID))
	controller := mission.NewController(link,
		mission.WithPost(bus.Post),
		mission.WithSettleDelay(cfg.SettleDelay))

	missionDone := make(chan struct{})
	go func() {
		defer close(missionDone)
		time.Sleep(cfg.StartDelay)
		log.Printf("Starting mission on %s", link.Address())
		if err := mission.Run(ctx, link, controller, cfg.LogDir, cfg.LogFile); err != nil {
			log.Printf("Mission failed: %v", err)
			return
		}
		log.Printf("Mission finished")
	}()

	// wait for termination or the end of the mission
	select {
	case <-terminationSignals:
	case <-missionDone:
	}

	// cancel the main context
	log.Printf("Shutting down..")
	quitFunc()
	<-missionDone

	// wait until goroutines have done their cleanup
	log.Printf("Waiting for routines to finish...")
	wg.Wait()
	log.Printf("Signing off - BYE")
}
