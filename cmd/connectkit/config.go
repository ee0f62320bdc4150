package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

var (
	rpcFlag = cli.StringFlag{
		Name:  "rpcserver",
		Usage: "connectkitd daemon address host:port",
		Value: "localhost:9545",
	}
)

var config = cli.Command{
	Name:   "config",
	Usage:  "Print local configuration of the connectkit CLI",
	Action: configAction,
	Subcommands: []*cli.Command{
		{
			Name:      "set",
			Usage:     "set a <key> <value> in the local state",
			ArgsUsage: "<key> <value>",
			Action:    configSetAction,
		},
		{
			Name:   "init",
			Usage:  "initialize the local state with flags",
			Action: configInitAction,
			Flags: []cli.Flag{
				&rpcFlag,
			},
		},
	},
}

func configAction(ctx *cli.Context) error {
	state, err := getState()
	if err != nil {
		return err
	}

	buf, err := json.Marshal(state)
	if err != nil {
		return err
	}
	printRespJSON(buf)
	return nil
}

func configSetAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return &invalidUsageError{c, "set"}
	}

	key := c.Args().Get(0)
	value := c.Args().Get(1)
	if err := setState(map[string]string{key: value}); err != nil {
		return err
	}

	fmt.Printf("%s %s has been set\n", key, value)
	return nil
}

func configInitAction(c *cli.Context) error {
	return setState(map[string]string{
		"rpcserver": c.String(rpcFlag.Name),
	})
}
