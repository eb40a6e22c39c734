package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/replydesk/server/internal/backend"
	"github.com/replydesk/server/internal/browser"
	"github.com/replydesk/server/internal/charge"
	"github.com/replydesk/server/internal/logger"
)

// ErrAborted is returned when the user declines to retry or start over
var ErrAborted = errors.New("charge aborted")

type chargeOptions struct {
	backendURL string
	token      string
	email      string
	amount     int64
	noBrowser  bool
}

func newChargeCmd(prompter Prompter) *cobra.Command {
	opts := &chargeOptions{}

	cmd := &cobra.Command{
		Use:   "charge",
		Short: "Run a card charge interactively",
		Long: `Collects card details, submits the charge and walks through every issuer
challenge (PIN, OTP, phone, birthday, address). A 3-D Secure link is opened
in the browser.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.backendURL == "" {
				opts.backendURL = os.Getenv("BACKEND_URL")
			}
			if opts.token == "" {
				opts.token = os.Getenv("PAYCTL_TOKEN")
			}
			if opts.backendURL == "" || opts.token == "" {
				return fmt.Errorf("--backend (or BACKEND_URL) and --token (or PAYCTL_TOKEN) are required")
			}
			if opts.amount <= 0 {
				return fmt.Errorf("--amount must be positive")
			}

			opener := browser.Open
			if opts.noBrowser {
				opener = nil
			}

			flow := charge.NewFlow(backend.New(opts.backendURL).Gateway(opts.token))
			d := &chargeDriver{
				flow:     flow,
				order:    charge.Order{Email: opts.email, Amount: opts.amount},
				prompter: prompter,
				out:      cmd.OutOrStdout(),
				open:     opener,
			}
			return d.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&opts.backendURL, "backend", "", "payment backend base URL (default $BACKEND_URL)")
	cmd.Flags().StringVar(&opts.token, "token", "", "bearer token (default $PAYCTL_TOKEN)")
	cmd.Flags().StringVar(&opts.email, "email", "", "customer email")
	cmd.Flags().Int64Var(&opts.amount, "amount", 0, "amount in minor units")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "print the 3-D Secure link instead of opening it")

	return cmd
}

// chargeDriver runs a flow to a terminal state using a Prompter
type chargeDriver struct {
	flow     *charge.Flow
	order    charge.Order
	prompter Prompter
	out      io.Writer
	open     func(url string) error
}

func (d *chargeDriver) run(ctx context.Context) error {
	for {
		state := d.flow.Snapshot()

		switch state.Step {
		case charge.StepSuccess:
			fmt.Fprintln(d.out, successStyle.Render("Payment successful"))
			if len(state.Payload) > 0 {
				fmt.Fprintln(d.out, mutedStyle.Render(string(state.Payload)))
			}
			return nil

		case charge.StepThreeDSRequired:
			fmt.Fprintln(d.out, stepStyle.Render("3-D Secure authorization required"))
			fmt.Fprintln(d.out, state.AuthURL)
			if d.open != nil {
				if err := d.open(state.AuthURL); err != nil {
					fmt.Fprintln(d.out, errorStyle.Render("could not open browser: "+err.Error()))
				}
			}
			fmt.Fprintln(d.out, "Complete the authorization in your browser.")
			return nil

		case charge.StepCardEntry:
			card, err := d.prompter.Card()
			if err != nil {
				return err
			}
			fmt.Fprintln(d.out, mutedStyle.Render("Charging "+logger.MaskCard(card.Number)+"..."))
			if err := d.handle(ctx, d.flow.SubmitCard(ctx, card, d.order)); err != nil {
				return err
			}

		default:
			ch, ok := state.Step.Challenge()
			if !ok {
				return fmt.Errorf("unexpected step %s", state.Step)
			}
			fmt.Fprintln(d.out, stepStyle.Render(string(state.Step)))
			value, err := d.prompter.Challenge(ch, state.Prompt)
			if err != nil {
				return err
			}
			if err := d.handle(ctx, d.flow.SubmitChallenge(ctx, value)); err != nil {
				return err
			}
		}
	}
}

// handle reports a submission error and decides whether the loop continues.
// A nil return means prompt again.
func (d *chargeDriver) handle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var (
		verr *charge.ValidationError
		terr *charge.TransportError
		rerr *charge.RejectionError
	)
	switch {
	case errors.As(err, &verr):
		for _, field := range sortedKeys(verr.Fields) {
			fmt.Fprintln(d.out, errorStyle.Render(field+": "+verr.Fields[field]))
		}
		for field := range verr.Fields {
			d.flow.EditField(field)
		}
		return nil

	case errors.As(err, &terr):
		fmt.Fprintln(d.out, errorStyle.Render(d.flow.Snapshot().Message))
		retry, perr := d.prompter.Confirm("Try again?")
		if perr != nil {
			return perr
		}
		if !retry {
			return ErrAborted
		}
		d.flow.DismissMessage()
		return nil

	case errors.As(err, &rerr):
		fmt.Fprintln(d.out, errorStyle.Render("Payment failed: "+rerr.Message))
		again, perr := d.prompter.Confirm("Start over with a new card?")
		if perr != nil {
			return perr
		}
		if !again {
			return rerr
		}
		d.flow.Reset(ctx)
		return nil

	default:
		return err
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
