package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/your-org/facepass/internal/app"
	"github.com/your-org/facepass/pkg/dto"
)

var employeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "List registered employees",
	Args:  cobra.NoArgs,
	RunE:  runEmployees,
}

func init() {
	rootCmd.AddCommand(employeesCmd)
	employeesCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEmployees(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := app.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	employees, err := store.ListEmployees(cmd.Context())
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		resp := make([]dto.EmployeeResponse, 0, len(employees))
		for _, e := range employees {
			resp = append(resp, dto.EmployeeResponse{
				EmployeeID:   e.EmployeeID,
				Name:         e.Name,
				RegisteredAt: dto.FormatTime(e.RegisteredAt),
				EncodingDim:  e.Encoding.Dim(),
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dto.EmployeeListResponse{Employees: resp, Total: len(resp)})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tDIM\tREGISTERED")
	for _, e := range employees {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.EmployeeID, e.Name, e.Encoding.Model, e.Encoding.Dim(), dto.FormatTime(e.RegisteredAt))
	}
	return w.Flush()
}
