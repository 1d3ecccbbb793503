package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/your-org/facepass/internal/app"
	"github.com/your-org/facepass/internal/attendance"
	"github.com/your-org/facepass/internal/face"
)

var encodeCmd = &cobra.Command{
	Use:   "encode photo...",
	Short: "Detect and encode faces in local photos",
	Long: `Run the configured detector and encoder on each photo and report the
outcome per image. With --json the aggregated encoding is printed.`,
	Args: cobra.RangeArgs(1, attendance.MaxPhotos),
	RunE: runEncode,
}

var compareCmd = &cobra.Command{
	Use:   "compare photo-a photo-b",
	Short: "Compare the faces in two photos under the configured policy",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompare,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(compareCmd)
	encodeCmd.Flags().Bool("json", false, "Print the aggregated encoding as JSON")
}

func runEncode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	batch, err := a.Service.Encode(cmd.Context(), fileUploads(args))
	if err != nil {
		return err
	}
	enc, err := batch.Aggregate()

	if mustGetBool(cmd, "json") {
		if err != nil {
			return err
		}
		out := json.NewEncoder(os.Stdout)
		return out.Encode(enc)
	}

	printImages(batch.Images)
	if err != nil {
		return errNoEncoding
	}
	spec := a.Service.EncoderSpec()
	fmt.Printf("encoded %d/%d photo(s): model %s, %d dims, metric %s\n",
		len(batch.Encodings()), len(batch.Images), enc.Model, enc.Dim(), spec.Metric)
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	encs := make([]face.Encoding, len(args))
	for i, path := range args {
		batch, err := a.Service.Encode(cmd.Context(), fileUploads([]string{path}))
		if err != nil {
			return err
		}
		if encs[i], err = batch.Aggregate(); err != nil {
			return fmt.Errorf("%s: %w", path, batch.Images[0].Err)
		}
	}

	m := a.Service.Matcher()
	measure, err := m.Compare(encs[0], encs[1])
	if err != nil {
		return err
	}

	p := m.Policy()
	verdict := "different people"
	if m.Qualifies(measure) {
		verdict = "same person"
	}
	fmt.Printf("%s %.4f (threshold %.4f): %s\n", p.Metric, measure, p.Threshold, verdict)
	return nil
}
