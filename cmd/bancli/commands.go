package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/caixaops/bancli/internal/api"
	"github.com/caixaops/bancli/internal/cache"
	"github.com/caixaops/bancli/internal/models"
	"github.com/caixaops/bancli/internal/session"
	"github.com/fatih/color"
	"github.com/oapi-codegen/runtime/types"
	"golang.org/x/term"
)

var errNeedLogin = errors.New("faça login antes de usar este comando")

type app struct {
	client *api.Client
	store  *session.Store
	cache  *cache.Cache
	out    io.Writer
}

func (a *app) dispatch(args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "login":
		return a.login(rest)
	case "logout":
		a.store.Logout()
		color.Green("Sessão encerrada.")
		return nil
	case "whoami":
		return a.whoami()
	case "register":
		return a.register(rest)
	}

	// Everything below requires a session, the CLI analogue of the admin
	// UI's guarded routes.
	if a.store.Current() == nil {
		return errNeedLogin
	}

	ctx := context.Background()
	switch cmd {
	case "usuarios":
		return a.usuarios(ctx, rest)
	case "contas":
		return a.contas(ctx, rest)
	case "mov":
		return a.movimentacoes(ctx, rest)
	case "extrato":
		return a.extrato(ctx, rest)
	default:
		usage()
		return fmt.Errorf("comando desconhecido: %s", cmd)
	}
}

func (a *app) login(args []string) error {
	if len(args) != 1 {
		return errors.New("uso: bancli login <email>")
	}

	senha, err := promptPassword("Senha: ")
	if err != nil {
		return err
	}

	user, err := a.store.Login(context.Background(), args[0], senha)
	if err != nil {
		return err
	}
	color.Green("Bem-vindo, %s!", user.Nome)
	return nil
}

func (a *app) whoami() error {
	user := a.store.Current()
	if user == nil {
		fmt.Fprintln(a.out, "Nenhuma sessão ativa.")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s> (id %d)\n", user.Nome, user.Email, user.ID)
	if expiry, ok := a.store.ExpiresAt(); ok {
		fmt.Fprintf(a.out, "Sessão expira em %s\n", expiry.Local().Format("02/01/2006 15:04"))
	}
	return nil
}

func (a *app) register(args []string) error {
	if len(args) != 4 {
		return errors.New("uso: bancli register <nome> <cpf> <endereco> <email>")
	}

	senha, err := promptPassword("Senha: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirme a senha: ")
	if err != nil {
		return err
	}
	if senha != confirm {
		return errors.New("as senhas não coincidem")
	}

	user, err := a.store.Register(context.Background(), session.Profile{
		Nome: args[0], CPF: args[1], Endereco: args[2], Email: args[3], Senha: senha,
	})
	if err != nil {
		return err
	}
	color.Green("Operador %s cadastrado e autenticado.", user.Nome)
	return nil
}

func (a *app) usuarios(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		if err := a.cache.LoadAll(ctx); err != nil {
			return err
		}
		a.renderCustomers(a.cache.Snapshot())
		return nil
	case "add":
		if len(args) != 4 {
			return errors.New("uso: bancli usuarios add <nome> <cpf> <endereco>")
		}
		if err := a.cache.CreateCustomer(ctx, cache.CustomerInput{
			Nome: args[1], CPF: args[2], Endereco: args[3],
		}); err != nil {
			return err
		}
		color.Green("Usuário cadastrado.")
		return nil
	case "edit":
		if len(args) != 5 {
			return errors.New("uso: bancli usuarios edit <id> <nome> <cpf> <endereco>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := a.cache.UpdateCustomer(ctx, id, cache.CustomerInput{
			Nome: args[2], CPF: args[3], Endereco: args[4],
		}); err != nil {
			return err
		}
		color.Green("Usuário atualizado.")
		return nil
	case "rm":
		if len(args) != 2 {
			return errors.New("uso: bancli usuarios rm <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := a.cache.RemoveCustomer(ctx, id); err != nil {
			return err
		}
		color.Green("Usuário excluído.")
		return nil
	default:
		return fmt.Errorf("subcomando desconhecido: usuarios %s", args[0])
	}
}

func (a *app) contas(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		if err := a.cache.LoadAll(ctx); err != nil {
			return err
		}
		snap := a.cache.Snapshot()
		accounts := snap.Accounts
		if len(args) == 2 {
			usuarioID, err := parseID(args[1])
			if err != nil {
				return err
			}
			accounts = snap.AccountsForCustomer(usuarioID)
		}
		a.renderAccounts(accounts)
		return nil
	case "add":
		if len(args) != 3 {
			return errors.New("uso: bancli contas add <usuarioId> <numero>")
		}
		usuarioID, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := a.loadThen(ctx, func() error {
			return a.cache.CreateAccount(ctx, cache.AccountInput{UsuarioID: usuarioID, NumeroConta: args[2]})
		}); err != nil {
			return err
		}
		color.Green("Conta criada com saldo inicial zero.")
		return nil
	case "edit":
		if len(args) != 3 {
			return errors.New("uso: bancli contas edit <id> <numero>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := a.loadThen(ctx, func() error {
			return a.cache.UpdateAccount(ctx, id, args[2])
		}); err != nil {
			return err
		}
		color.Green("Conta atualizada.")
		return nil
	case "rm":
		if len(args) != 2 {
			return errors.New("uso: bancli contas rm <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := a.cache.RemoveAccount(ctx, id); err != nil {
			return err
		}
		color.Green("Conta excluída.")
		return nil
	default:
		return fmt.Errorf("subcomando desconhecido: contas %s", args[0])
	}
}

func (a *app) movimentacoes(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		if err := a.cache.LoadAll(ctx); err != nil {
			return err
		}
		snap := a.cache.Snapshot()
		movements := snap.Movements
		if len(args) == 2 {
			contaID, err := parseID(args[1])
			if err != nil {
				return err
			}
			st, err := snap.StatementForAccount(contaID)
			if err != nil {
				return err
			}
			movements = st.Movements
		}
		a.renderMovements(movements)
		return nil
	case "add":
		if len(args) != 4 && len(args) != 5 {
			return errors.New("uso: bancli mov add <contaId> <DEPOSITO|SAQUE> <valor> [data AAAA-MM-DD]")
		}
		contaID, err := parseID(args[1])
		if err != nil {
			return err
		}
		tipo, err := models.ParseMovementKind(args[2])
		if err != nil {
			return err
		}
		valor, err := models.ParseMoney(args[3])
		if err != nil {
			return err
		}
		var data types.Date
		if len(args) == 5 {
			if data, err = parseDate(args[4]); err != nil {
				return err
			}
		}
		if err := a.loadThen(ctx, func() error {
			return a.cache.CreateMovement(ctx, cache.MovementInput{
				ContaID: contaID, Tipo: tipo, Valor: valor, Data: data,
			})
		}); err != nil {
			return err
		}
		color.Green("Movimentação registrada.")
		return nil
	case "edit":
		if len(args) != 3 {
			return errors.New("uso: bancli mov edit <id> <data AAAA-MM-DD>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		data, err := parseDate(args[2])
		if err != nil {
			return err
		}
		if err := a.cache.UpdateMovementDate(ctx, id, data); err != nil {
			return err
		}
		color.Green("Movimentação atualizada.")
		return nil
	case "rm":
		if len(args) != 2 {
			return errors.New("uso: bancli mov rm <id>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if err := a.cache.RemoveMovement(ctx, id); err != nil {
			return err
		}
		color.Green("Movimentação excluída.")
		return nil
	default:
		return fmt.Errorf("subcomando desconhecido: mov %s", args[0])
	}
}

func (a *app) extrato(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("uso: bancli extrato <contaId>")
	}
	contaID, err := parseID(args[0])
	if err != nil {
		return err
	}

	if err := a.cache.LoadAll(ctx); err != nil {
		return err
	}
	snap := a.cache.Snapshot()
	st, err := snap.StatementForAccount(contaID)
	if err != nil {
		return err
	}

	account := snap.AccountByID(contaID)
	fmt.Fprintf(a.out, "Extrato da conta %s — %s\n", account.NumeroConta, account.Usuario.Nome)
	a.renderMovements(st.Movements)
	fmt.Fprintf(a.out, "Saldo atual: %s\n", colorMoney(st.Saldo, 1))
	return nil
}

// loadThen fetches the collections before running a mutation, so validations
// that consult the snapshot (duplicate account numbers, balances) see fresh
// data in one-shot CLI invocations.
func (a *app) loadThen(ctx context.Context, mutate func() error) error {
	if err := a.cache.LoadAll(ctx); err != nil {
		return err
	}
	return mutate()
}

func (a *app) renderCustomers(snap cache.Snapshot) {
	if len(snap.Customers) == 0 {
		fmt.Fprintln(a.out, "Nenhum usuário cadastrado.")
		return
	}
	bold := color.New(color.Bold)
	bold.Fprintf(a.out, "%-5s %-30s %-15s %s\n", "ID", "NOME", "CPF", "ENDEREÇO")
	for _, c := range snap.Customers {
		contas := len(snap.AccountsForCustomer(c.ID))
		fmt.Fprintf(a.out, "%-5d %-30s %-15s %s (%d conta(s))\n",
			c.ID, c.Nome, models.FormatCPF(c.CPF), c.Endereco, contas)
	}
}

func (a *app) renderAccounts(accounts []models.Account) {
	if len(accounts) == 0 {
		fmt.Fprintln(a.out, "Nenhuma conta encontrada.")
		return
	}
	sorted := make([]models.Account, len(accounts))
	copy(sorted, accounts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	bold := color.New(color.Bold)
	bold.Fprintf(a.out, "%-5s %-12s %-30s %s\n", "ID", "NÚMERO", "TITULAR", "SALDO")
	for _, acc := range sorted {
		fmt.Fprintf(a.out, "%-5d %-12s %-30s R$ %s\n", acc.ID, acc.NumeroConta, acc.Usuario.Nome, acc.Saldo)
	}
}

func (a *app) renderMovements(movements []models.Movement) {
	if len(movements) == 0 {
		fmt.Fprintln(a.out, "Nenhuma movimentação encontrada.")
		return
	}
	bold := color.New(color.Bold)
	bold.Fprintf(a.out, "%-5s %-12s %-10s %-12s %s\n", "ID", "DATA", "TIPO", "VALOR", "CONTA")
	for _, m := range movements {
		fmt.Fprintf(a.out, "%-5d %-12s %-10s %-12s %s\n",
			m.ID, m.Data.Time.Format("02/01/2006"), m.Tipo,
			colorMoney(m.Valor, int(m.Tipo.Sign())), m.Conta.NumeroConta)
	}
}

// colorMoney renders an amount green for credits and red for debits, the
// same cue the admin UI's tables use.
func colorMoney(v models.Money, sign int) string {
	if sign < 0 {
		return color.RedString("R$ %s", v)
	}
	return color.GreenString("R$ %s", v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id inválido: %q", s)
	}
	return id, nil
}

func parseDate(s string) (types.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return types.Date{}, fmt.Errorf("data inválida (use AAAA-MM-DD): %q", s)
	}
	return types.Date{Time: t}, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// errorMessage translates errors into the operator-facing messages the
// admin UI shows; validation errors keep their per-field text.
func errorMessage(err error) string {
	var fieldErrs cache.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		msgs := make([]string, 0, len(fieldErrs))
		for _, field := range sortedKeys(fieldErrs) {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, fieldErrs[field]))
		}
		return "Dados inválidos:\n  " + strings.Join(msgs, "\n  ")
	case errors.Is(err, cache.ErrConfirmationDeclined):
		return "Operação cancelada."
	case errors.Is(err, api.ErrUnauthorized):
		return "Sessão expirada. Faça login novamente."
	case errors.Is(err, errNeedLogin):
		return err.Error()
	default:
		return session.AuthErrorMessage(err)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

