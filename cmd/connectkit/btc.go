package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/urfave/cli/v2"
)

var (
	signatureTypeFlag = cli.StringFlag{
		Name:  "type",
		Usage: "the signature type, ecdsa or bip322-simple",
	}
	feeRateFlag = cli.Float64Flag{
		Name:  "fee_rate",
		Usage: "the fee rate in sats/vbyte, the wallet's default if not set",
	}
)

var btc = cli.Command{
	Name:  "btc",
	Usage: "operate the connected bitcoin wallet",
	Subcommands: []*cli.Command{
		{
			Name:   "pubkey",
			Usage:  "get the public key of the connected account",
			Action: btcPublicKeyAction,
		},
		{
			Name:      "signmessage",
			Usage:     "sign a message with the connected account",
			ArgsUsage: "<message>",
			Flags:     []cli.Flag{&signatureTypeFlag},
			Action:    btcSignMessageAction,
		},
		{
			Name:   "network",
			Usage:  "get the network of the wallet",
			Action: btcNetworkAction,
			Subcommands: []*cli.Command{
				{
					Name:      "switch",
					Usage:     "switch the wallet to livenet or testnet",
					ArgsUsage: "<network>",
					Action:    btcSwitchNetworkAction,
				},
			},
		},
		{
			Name:      "send",
			Usage:     "send satoshis to an address",
			ArgsUsage: "<address> <satoshis>",
			Flags:     []cli.Flag{&feeRateFlag},
			Action:    btcSendAction,
		},
		{
			Name:      "sendinscription",
			Usage:     "send an inscription to an address",
			ArgsUsage: "<address> <inscription_id>",
			Flags:     []cli.Flag{&feeRateFlag},
			Action:    btcSendInscriptionAction,
		},
	},
}

func btcPublicKeyAction(ctx *cli.Context) error {
	return getAndPrint("/v1/btc/public-key")
}

func btcSignMessageAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "signmessage"}
	}

	body := map[string]string{"message": ctx.Args().First()}
	if sigType := ctx.String(signatureTypeFlag.Name); sigType != "" {
		body["type"] = sigType
	}
	resp, err := doRequest(http.MethodPost, "/v1/btc/sign-message", body)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func btcNetworkAction(ctx *cli.Context) error {
	return getAndPrint("/v1/btc/network")
}

func btcSwitchNetworkAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, "switch"}
	}

	resp, err := doRequest(http.MethodPut, "/v1/btc/network", map[string]string{
		"network": ctx.Args().First(),
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func btcSendAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return &invalidUsageError{ctx, "send"}
	}
	sats, err := strconv.ParseUint(ctx.Args().Get(1), 10, 64)
	if err != nil || sats == 0 {
		return fmt.Errorf("invalid amount %q: must be a positive number of satoshis", ctx.Args().Get(1))
	}

	body := map[string]interface{}{
		"toAddress": ctx.Args().Get(0),
		"satoshis":  sats,
	}
	if opts := sendOptions(ctx); opts != nil {
		body["options"] = opts
	}
	resp, err := doRequest(http.MethodPost, "/v1/btc/send-bitcoin", body)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func btcSendInscriptionAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return &invalidUsageError{ctx, "sendinscription"}
	}

	body := map[string]interface{}{
		"address":       ctx.Args().Get(0),
		"inscriptionId": ctx.Args().Get(1),
	}
	if opts := sendOptions(ctx); opts != nil {
		body["options"] = opts
	}
	resp, err := doRequest(http.MethodPost, "/v1/btc/send-inscription", body)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func sendOptions(ctx *cli.Context) map[string]float64 {
	feeRate := ctx.Float64(feeRateFlag.Name)
	if feeRate <= 0 {
		return nil
	}
	return map[string]float64{"feeRate": feeRate}
}
