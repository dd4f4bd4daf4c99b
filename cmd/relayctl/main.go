/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Command relayctl queries and changes the rate of a running raterelay and sends test work requests to it.
//
// Usage:
//
//	relayctl [flags] get-rate
//	relayctl [flags] set-rate RATE
//	relayctl [flags] send BODY
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/acronis/go-raterelay/internal/version"
	"github.com/acronis/go-raterelay/redisbus"
	"github.com/acronis/go-raterelay/relay"
)

const replyStreamPrefix = "relayctl.replies."

var errUsage = errors.New("usage: relayctl [flags] get-rate | set-rate RATE | send BODY")

type options struct {
	redisAddr string
	location  string
	service   string
	timeout   time.Duration
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var opts options
	flags := pflag.NewFlagSet("relayctl", pflag.ContinueOnError)
	flags.StringVar(&opts.redisAddr, "redis", "127.0.0.1:6379", "address of the Redis server")
	flags.StringVar(&opts.location, "location", relay.DefaultLocation, "location of the relay to control")
	flags.StringVar(&opts.service, "service", relay.DefaultServiceAddress, "address work requests are sent to")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "how long to wait for the reply")
	printVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *printVersion {
		_, err := fmt.Fprintln(out, version.Get())
		return err
	}

	msg, err := makeRequest(flags.Args(), opts)
	if err != nil {
		return err
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{opts.redisAddr}})
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	reply, err := request(ctx, client, msg)
	if err != nil {
		return err
	}
	if msg.Address == opts.service {
		_, err = fmt.Fprintf(out, "%s\n(location: %s)\n", reply.Body, reply.PropertyString(relay.PropertyLocation))
		return err
	}
	_, err = fmt.Fprintf(out, "%s %s %s\n", reply.PropertyString(relay.PropertyOpcode),
		reply.PropertyString(relay.PropertyRate), reply.PropertyString(relay.PropertyLocation))
	return err
}

func makeRequest(args []string, opts options) (relay.OutgoingMessage, error) {
	if len(args) == 0 {
		return relay.OutgoingMessage{}, errUsage
	}
	controlAddress := relay.ControlAddressPrefix + opts.location
	switch args[0] {
	case "get-rate":
		if len(args) != 1 {
			return relay.OutgoingMessage{}, errUsage
		}
		return relay.OutgoingMessage{
			Address:    controlAddress,
			Properties: map[string]interface{}{relay.PropertyOpcode: relay.OpcodeGetRate},
		}, nil
	case "set-rate":
		if len(args) != 2 {
			return relay.OutgoingMessage{}, errUsage
		}
		rate, err := strconv.Atoi(args[1])
		if err != nil || rate <= 0 {
			return relay.OutgoingMessage{}, fmt.Errorf("invalid rate %q: %w", args[1], relay.ErrInvalidRate)
		}
		return relay.OutgoingMessage{
			Address:    controlAddress,
			Properties: map[string]interface{}{relay.PropertyOpcode: relay.OpcodeSetRate, relay.PropertyRate: rate},
		}, nil
	case "send":
		if len(args) != 2 {
			return relay.OutgoingMessage{}, errUsage
		}
		return relay.OutgoingMessage{Address: opts.service, Body: []byte(args[1])}, nil
	}
	return relay.OutgoingMessage{}, errUsage
}

// request sends the message to a fresh reply stream and waits for the reply with the same correlation ID.
func request(ctx context.Context, client redis.UniversalClient, msg relay.OutgoingMessage) (*redisbus.Message, error) {
	msg.CorrelationID = uuid.NewString()
	replyTo := replyStreamPrefix + msg.CorrelationID
	defer func() { _ = client.Del(context.Background(), replyTo).Err() }()

	if _, err := redisbus.NewSender(client, 0).SendRequest(ctx, msg, replyTo); err != nil {
		return nil, err
	}

	lastID := "0"
	for {
		block := time.Second
		if deadline, ok := ctx.Deadline(); ok {
			if block = time.Until(deadline); block < time.Millisecond {
				return nil, fmt.Errorf("wait for reply: %w", context.DeadlineExceeded)
			}
		}
		streams, err := client.XRead(ctx, &redis.XReadArgs{Streams: []string{replyTo, lastID}, Count: 1, Block: block}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("wait for reply: %w", err)
		}
		for _, s := range streams {
			for _, xm := range s.Messages {
				lastID = xm.ID
				if reply := redisbus.DecodeMessage(replyTo, xm); reply.CorrelationID == msg.CorrelationID {
					return reply, nil
				}
			}
		}
	}
}
