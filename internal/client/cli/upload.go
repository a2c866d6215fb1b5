package cli

import (
	"context"
	"fmt"
)

// Upload sends a spreadsheet; its rows become context for later questions.
func (a *App) Upload(ctx context.Context, path string) error {
	res, err := a.api.Upload(ctx, path)
	if err != nil {
		fmt.Fprintf(a.out, "Upload failed: %s\n", err)
		return err
	}
	fmt.Fprintln(a.out, res.Summary)
	return nil
}
