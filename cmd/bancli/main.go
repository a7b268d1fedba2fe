// Command bancli is the terminal front end for the banking admin API. It
// keeps a session on disk between invocations and drives the shared entity
// cache for every read and mutation.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caixaops/bancli/internal/api"
	"github.com/caixaops/bancli/internal/cache"
	"github.com/caixaops/bancli/internal/config"
	"github.com/caixaops/bancli/internal/session"
	"github.com/fatih/color"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	logger := cfg.Logger.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if len(args) == 0 {
		usage()
		return 2
	}

	storage, err := session.NewFileStorage(cfg.Session.File)
	if err != nil {
		logger.Error("failed to open session storage", "file", cfg.Session.File, "error", err)
		return 1
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, logger)
	store := session.NewStore(storage, client, logger)
	client.SetTokenSource(store.Token)
	client.OnUnauthorized(func() {
		store.Teardown()
		color.Red("Sessão expirada. Faça login novamente.")
	})

	app := &app{
		client: client,
		store:  store,
		cache:  cache.New(client, confirmOnStdin, logger),
		out:    os.Stdout,
	}

	if err := app.dispatch(args); err != nil {
		color.Red("%s", errorMessage(err))
		return 1
	}
	return 0
}

func confirmOnStdin(prompt string) bool {
	fmt.Printf("%s [s/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "s" || answer == "sim"
}

func usage() {
	fmt.Fprintln(os.Stderr, `uso: bancli <comando> [argumentos]

Sessão:
  login <email>                           autentica e grava a sessão
  logout                                  encerra a sessão
  whoami                                  mostra o operador autenticado
  register <nome> <cpf> <endereco> <email>  cria um operador

Usuários:
  usuarios list
  usuarios add <nome> <cpf> <endereco>
  usuarios edit <id> <nome> <cpf> <endereco>
  usuarios rm <id>

Contas:
  contas list [usuarioId]
  contas add <usuarioId> <numero>
  contas edit <id> <numero>
  contas rm <id>

Movimentações:
  mov list [contaId]
  mov add <contaId> <DEPOSITO|SAQUE> <valor> [data AAAA-MM-DD]
  mov edit <id> <data AAAA-MM-DD>
  mov rm <id>

Extrato:
  extrato <contaId>`)
}
