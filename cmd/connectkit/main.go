package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli/v2"
)

var (
	connectkitDataDir = btcutil.AppDataDir("connectkit-cli", false)
	statePath         = filepath.Join(connectkitDataDir, "state.json")

	httpClient = &http.Client{Timeout: 10 * time.Minute}
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "connectkit"
	app.Usage = "Command line interface for the connectkitd daemon"
	app.Commands = append(
		app.Commands,
		&config,
		&connectors,
		&connect,
		&disconnect,
		&accounts,
		&accountContract,
		&btc,
		&evm,
		&confirmations,
		&webhook,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func getState() (map[string]string, error) {
	data := map[string]string{}

	file, err := os.ReadFile(statePath)
	if err != nil {
		return nil, errors.New("get config state error: try 'config init'")
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("invalid config state: %w", err)
	}

	return data, nil
}

func setState(data map[string]string) error {
	if _, err := os.Stat(connectkitDataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(connectkitDataDir, os.ModeDir|0755); err != nil {
			return err
		}
	}

	currentData, err := getState()
	if err != nil {
		currentData = map[string]string{}
	}

	buf, err := json.Marshal(merge(currentData, data))
	if err != nil {
		return err
	}
	if err := os.WriteFile(statePath, buf, 0644); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}
	return nil
}

func merge(maps ...map[string]string) map[string]string {
	merge := make(map[string]string, 0)
	for _, m := range maps {
		for k, v := range m {
			merge[k] = v
		}
	}
	return merge
}

func getDaemonURL() (string, error) {
	state, err := getState()
	if err != nil {
		return "", err
	}
	address, ok := state["rpcserver"]
	if !ok || address == "" {
		return "", errors.New("set rpcserver with `config set rpcserver`")
	}
	if !strings.HasPrefix(address, "http://") &&
		!strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	return strings.TrimSuffix(address, "/"), nil
}

// doRequest sends body, if any, as JSON to the given daemon route and
// returns the raw response. Non-2xx responses are turned into errors
// carrying the daemon's {code, message}.
func doRequest(method, route string, body interface{}) (json.RawMessage, error) {
	baseURL, err := getDaemonURL()
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, baseURL+route, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseErrorResponse(resp.StatusCode, buf)
	}
	return buf, nil
}

type daemonError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *daemonError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func parseErrorResponse(status int, buf []byte) error {
	var resp struct {
		Error *daemonError `json:"error"`
	}
	if err := json.Unmarshal(buf, &resp); err != nil || resp.Error == nil {
		return fmt.Errorf("daemon replied with status %d: %s", status, string(buf))
	}
	resp.Error.Status = status
	return resp.Error
}

func printRespJSON(resp json.RawMessage) {
	var out bytes.Buffer
	if err := json.Indent(&out, resp, "", "\t"); err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}
	fmt.Println(out.String())
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[connectkit] %v\n", err)
	}
	os.Exit(1)
}
