package main

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		API        string           `help:"API base URL." default:"http://localhost:8080/api/v1" env:"SMARTCRM_API"`
		TokenFile  string           `help:"Where the access token is kept." type:"path" env:"SMARTCRM_TOKEN_FILE"`
		Auth       AuthCmd          `cmd:"" help:"Log in, log out and inspect the current account."`
		Leads      LeadsCmd         `cmd:"" help:"Manage leads."`
		Complaints ComplaintsCmd    `cmd:"" help:"Manage complaints."`
		Version    kong.VersionFlag `help:"Print version."`
	}
)

func main() {
	ctx := context.Background()
	kctx := kong.Parse(&cli,
		kong.Name("smartcrm"),
		kong.Description("Command line client for the SmartCRM API."),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(os.Stdout, (*io.Writer)(nil)),
	)

	tokenPath := cli.TokenFile
	if tokenPath == "" {
		tokenPath = defaultTokenPath()
	}
	err := kctx.Run(newAPIClient(cli.API, tokenPath))
	kctx.FatalIfErrorf(err)
}
