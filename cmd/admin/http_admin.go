package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	adminCmd(http.MethodGet, *baseURL, "/admin/v1/state", 5*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	adminCmd(http.MethodPost, *baseURL, "/admin/v1/snapshot", 10*time.Second)
}

func adminCmd(method, baseURL, path string, timeout time.Duration) {
	body, status, err := adminCall(method, baseURL, path, timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	fmt.Println(strings.TrimRight(string(body), "\n"))
	if status/100 != 2 {
		os.Exit(1)
	}
}

// adminCall sends one request to the server's admin surface and returns the raw body.
func adminCall(method, baseURL, path string, timeout time.Duration) ([]byte, int, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return nil, 0, err
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return b, resp.StatusCode, nil
}
