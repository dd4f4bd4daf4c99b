/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"fmt"
	"net"
	"time"
)

// GetLocalAddrWithFreeTCPPort returns a 127.0.0.1 address with a TCP port nobody listens on at the moment of the call.
func GetLocalAddrWithFreeTCPPort() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	addr := ln.Addr().String()
	if err = ln.Close(); err != nil {
		panic(err)
	}
	return addr
}

// WaitListeningServer polls addr until it accepts TCP connections or timeout expires.
func WaitListeningServer(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		conn, err := net.DialTimeout("tcp", addr, time.Millisecond*100)
		if err == nil {
			return conn.Close()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s is not listening after %s: %w", addr, timeout, err)
		}
		<-ticker.C
	}
}
