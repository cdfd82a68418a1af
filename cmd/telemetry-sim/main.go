// Command telemetry-sim publishes synthetic joint telemetry to an MQTT topic,
// or records it as JSON lines for replay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"urdfpanel/panel/telemetry"
)

type cli struct {
	Broker    string        `help:"MQTT broker URL." default:"tcp://localhost:1883"`
	Topic     string        `help:"Topic to publish to." default:"robot/telemetry"`
	QoS       byte          `name:"qos" help:"MQTT QoS." default:"0"`
	Rate      float64       `help:"Frames per second." default:"30"`
	Period    time.Duration `help:"Sine period." default:"8s"`
	Amplitude float64       `help:"Sine amplitude in radians." default:"1"`
	Columns   []string      `help:"Column names." default:"base,shoulder,elbow,wrist1,wrist2,wrist3"`
	Count     int           `help:"Stop after N frames (0 = run until interrupted)."`
	Record    string        `help:"Write frames to this file as JSON lines instead of publishing." type:"path"`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("telemetry-sim"),
		kong.Description("Publish synthetic joint telemetry."),
		kong.UsageOnError(),
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	kctx.FatalIfErrorf(run(ctx, c))
}

type publishFunc func(payload []byte) error

func run(ctx context.Context, c cli) error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive")
	}
	var publish publishFunc
	if c.Record != "" {
		f, err := os.Create(c.Record)
		if err != nil {
			return err
		}
		defer f.Close()
		publish = func(p []byte) error {
			_, err := f.Write(append(p, '\n'))
			return err
		}
	} else {
		client, err := connect(c)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		publish = func(p []byte) error {
			tok := client.Publish(c.Topic, c.QoS, false, p)
			if !tok.WaitTimeout(5 * time.Second) {
				return fmt.Errorf("publish to %s timed out", c.Topic)
			}
			return tok.Error()
		}
	}

	src := &telemetry.SineSource{Columns: c.Columns, Rate: c.Rate, Period: c.Period, Amplitude: c.Amplitude}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sent := 0
	var pubErr error
	err := src.Run(ctx, func(f telemetry.Frame) {
		b, err := telemetry.EncodeJSON(f)
		if err == nil {
			err = publish(b)
		}
		if err != nil {
			pubErr = err
			cancel()
			return
		}
		sent++
		if c.Count > 0 && sent >= c.Count {
			cancel()
		}
	})
	if pubErr != nil {
		return pubErr
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "sent %d frames\n", sent)
	return nil
}

func connect(c cli) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.Broker)
	opts.SetClientID("telemetry-sim-" + uuid.NewString())
	opts.SetConnectTimeout(5 * time.Second)
	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect %s: timed out", c.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.Broker, err)
	}
	return client, nil
}
