// receiptd is the receipt printing daemon: it stores incoming orders,
// serves the order feed to kitchen terminals, and drives the thermal
// printer. With -print it runs one job from the command line and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"receiptd/app/config"
	"receiptd/app/database"
	"receiptd/app/services"
	"receiptd/app/websocket"
)

func main() {
	var (
		configPath  = flag.String("config", "config.json", "path to the configuration file")
		printNumber = flag.String("print", "", "print the order with this number and exit")
		logPath     = flag.String("log", "", "also write logs to this file")
	)
	flag.Parse()

	log, err := buildLogger(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load configuration", zap.Error(err))
	}

	store, err := database.Open(cfg.Store, log)
	if err != nil {
		log.Fatal("open order store", zap.Error(err))
	}
	defer store.Close()

	printer := services.NewPrintService(store, cfg, log)

	if *printNumber != "" {
		if err := printer.PrintOrderNumber(context.Background(), *printNumber); err != nil {
			log.Fatal("print order", zap.String("order_number", *printNumber), zap.Error(err))
		}
		return
	}

	server := websocket.NewServer(store, printer, cfg.Server, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")
		server.Stop()
	}()

	if err := server.Start(); err != nil {
		log.Fatal("feed server", zap.Error(err))
	}
}

// buildLogger writes structured logs to stderr and, when a path is given,
// tees them into a file.
func buildLogger(path string) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			zapcore.InfoLevel,
		),
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.Lock(f),
			zapcore.DebugLevel,
		))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}
