package users

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Render writes the users table and the current form.
func (p *Panel) Render(w io.Writer) error {
	rows := p.Rows()
	form := p.Form()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tFIRST\tLAST\tROLE")
	for _, u := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.FirstName, u.LastName, u.Role)
	}
	if len(rows) == 0 {
		fmt.Fprintln(tw, "(no users)\t\t\t\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if form != (Form{}) {
		_, err := fmt.Fprintf(w, "form: id=%s email=%s first=%s last=%s role=%s\n",
			form.ID, form.Email, form.FirstName, form.LastName, form.Role)
		return err
	}
	return nil
}
