package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/engine"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/photo"
)

var (
	fromLibrary bool
	techStroke  string
	clientStrk  string
)

var showCmd = &cobra.Command{
	Use:   "show <orderId>",
	Short: "Show the checklist of an order with its answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		s, err := openSession(ctx, cmd, args[0], nil)
		if err != nil {
			return err
		}
		printSession(cmd.OutOrStdout(), s)
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer <orderId> <itemId> <value>",
	Short: "Answer one item from text input",
	Long: `Answer one item from text input and save it.

Numbers accept "," or "." as decimal separator, booleans accept si/no,
multi-select options are separated by ",".`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		s, err := openSession(ctx, cmd, args[0], nil)
		if err != nil {
			return err
		}
		resp, err := s.Answer(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "guardado %s (completado=%v)\n", args[1], resp.Completado)
		return nil
	},
}

var photoCmd = &cobra.Command{
	Use:   "photo <orderId> <itemId> <file>...",
	Short: "Attach photos to a photo item",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		files := args[2:]
		s, err := openSession(ctx, cmd, args[0], files)
		if err != nil {
			return err
		}
		source := photo.SourceCamera
		if fromLibrary {
			source = photo.SourceLibrary
		}
		for range files {
			p, err := s.CapturePhoto(ctx, args[1], source)
			if err != nil {
				return err
			}
			state := "sincronizada"
			if !p.Sincronizada {
				state = "pendiente"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", p.URI, state)
		}
		return nil
	},
}

var signCmd = &cobra.Command{
	Use:   "sign <orderId> <itemId>",
	Short: "Capture both signatures and the signing location",
	Long: `Capture the technician and client signatures, then the location.

Strokes are passed inline or as @file. Without --lat/--lng the fix fails
and you are asked whether to retry or continue without GPS.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tech, err := readStroke(techStroke)
		if err != nil {
			return err
		}
		client, err := readStroke(clientStrk)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		s, err := openSession(ctx, cmd, args[0], nil)
		if err != nil {
			return err
		}
		flow, err := s.SignatureFlow(args[1])
		if err != nil {
			return err
		}
		if err := flow.Capture(tech); err != nil {
			return fmt.Errorf("firma del técnico: %w", err)
		}
		if err := flow.Capture(client); err != nil {
			return fmt.Errorf("firma del cliente: %w", err)
		}
		coord, err := flow.Locate(ctx)
		if err != nil {
			return err
		}
		if coord.IsSentinel() {
			fmt.Fprintln(cmd.OutOrStdout(), "firmado sin GPS")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "firmado en %.6f, %.6f\n", coord.Lat, coord.Lng)
		}
		return nil
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <orderId>",
	Short: "Finalize the checklist once every obligatory item is done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		s, err := openSession(ctx, cmd, args[0], nil)
		if err != nil {
			return err
		}
		if p := s.Progress(); !p.Complete {
			return fmt.Errorf("faltan items obligatorios: %s", strings.Join(p.Missing, ", "))
		}
		inst, err := s.Finalize(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checklist %s %s\n", inst.ID, inst.Estado)
		return nil
	},
}

var finishCmd = &cobra.Command{
	Use:   "finish <orderId>",
	Short: "Mark the order's service as finished",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		order, err := newClient(newLogger()).FinishService(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "orden %s %s\n", order.Codigo, order.Estado)
		return nil
	},
}

func init() {
	photoCmd.Flags().BoolVar(&fromLibrary, "library", false, "Photos come from the library instead of the camera")
	signCmd.Flags().StringVar(&techStroke, "tech", "", "Technician signature stroke or @file")
	signCmd.Flags().StringVar(&clientStrk, "client", "", "Client signature stroke or @file")
}

func readStroke(v string) (string, error) {
	if !strings.HasPrefix(v, "@") {
		return v, nil
	}
	b, err := os.ReadFile(v[1:])
	if err != nil {
		return "", fmt.Errorf("read stroke: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func printSession(w io.Writer, s *engine.Session) {
	inst := s.Instance()
	values := s.Values()
	p := s.Progress()
	fmt.Fprintf(w, "checklist %s  estado=%s  obligatorios %d/%d\n\n", inst.ID, inst.Estado, p.RequiredDone, p.Required)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tITEM\tTIPO\tOBL\tPREGUNTA\tRESPUESTA")
	for _, it := range s.Items() {
		obl := ""
		if it.EsObligatorioEfectivo {
			obl = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", it.OrdenVisual, it.ID, it.TipoPregunta, obl, it.PreguntaTexto, itemtype.Describe(values[it.ID]))
	}
	tw.Flush()
	if len(p.Missing) > 0 {
		fmt.Fprintf(w, "\npendientes: %s\n", strings.Join(p.Missing, ", "))
	}
}
