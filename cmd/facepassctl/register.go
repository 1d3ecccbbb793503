package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/your-org/facepass/internal/app"
	"github.com/your-org/facepass/internal/attendance"
)

var registerCmd = &cobra.Command{
	Use:   "register --id ID --name NAME photo...",
	Short: "Register an employee from local photos",
	Args:  cobra.RangeArgs(1, attendance.MaxPhotos),
	RunE:  runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().String("id", "", "Employee ID")
	registerCmd.Flags().String("name", "", "Employee name")
	_ = registerCmd.MarkFlagRequired("id")
	_ = registerCmd.MarkFlagRequired("name")
}

func runRegister(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Service.Register(cmd.Context(), attendance.RegisterRequest{
		EmployeeID: mustGetString(cmd, "id"),
		Name:       mustGetString(cmd, "name"),
		Photos:     fileUploads(args),
	})
	if res != nil {
		printImages(res.Images)
	}
	if err != nil {
		return err
	}

	fmt.Printf("registered %s (%s) from %d photo(s)\n",
		res.Employee.EmployeeID, res.Employee.Name, len(res.Images))
	return nil
}

func fileUploads(paths []string) []attendance.Upload {
	photos := make([]attendance.Upload, len(paths))
	for i, p := range paths {
		photos[i] = attendance.Upload{
			Name: filepath.Base(p),
			Open: func() (io.ReadCloser, error) { return os.Open(p) },
		}
	}
	return photos
}

func printImages(images []attendance.ImageResult) {
	for _, r := range images {
		if r.OK() {
			fmt.Printf("  [%d] %s: face at %v\n", r.Index+1, r.Name, r.Region.Bounds)
			continue
		}
		fmt.Printf("  [%d] %s: %v\n", r.Index+1, r.Name, r.Err)
	}
}

var errNoEncoding = errors.New("no usable face in any photo")
