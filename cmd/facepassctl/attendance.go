package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/facepass/internal/app"
	"github.com/your-org/facepass/internal/models"
	"github.com/your-org/facepass/pkg/dto"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance [date]",
	Short: "List attendance for a day",
	Long: `List the attendance events recorded on a day. The date is YYYYMMDD or
YYYY-MM-DD and defaults to today in the configured timezone.

Examples:
  facepassctl attendance
  facepassctl attendance 2024-03-15 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)
	attendanceCmd.Flags().Bool("json", false, "Output as JSON")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return err
	}

	date := models.DateKey(time.Now(), loc)
	if len(args) == 1 {
		if date, err = models.ParseDateKey(args[0]); err != nil {
			return err
		}
	}

	store, closeStore, err := app.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := store.ListAttendance(cmd.Context(), date)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		resp := make([]dto.AttendanceEventResponse, 0, len(events))
		for _, ev := range events {
			resp = append(resp, dto.NewAttendanceEventResponse(ev))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dto.AttendanceListResponse{Date: date, Attendance: resp, Total: len(resp)})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tID\tNAME\tMODE\tCONFIDENCE")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\n",
			ev.Timestamp.In(loc).Format(time.TimeOnly), ev.EmployeeID, ev.Name, ev.Mode, ev.Confidence)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d event(s) on %s\n", len(events), date)
	return nil
}
