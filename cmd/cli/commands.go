package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/service"
)

type AuthCmd struct {
	Login          LoginCmd          `cmd:"" help:"Log in and save the access token."`
	Logout         LogoutCmd         `cmd:"" help:"Revoke the saved token."`
	Me             MeCmd             `cmd:"" help:"Show the current account."`
	ChangePassword ChangePasswordCmd `cmd:"" help:"Replace the current password."`
}

type LoginCmd struct {
	Email    string `help:"Account email." required:""`
	Password string `help:"Account password." required:"" env:"SMARTCRM_PASSWORD"`
}

func (c *LoginCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	var res service.LoginResult
	err := api.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": c.Email, "password": c.Password}, &res)
	if err != nil {
		return err
	}
	if err := api.saveToken(res.AccessToken); err != nil {
		return err
	}
	fmt.Fprintf(out, "logged in as %s (%s)\n", res.User.Email, res.User.Role)
	if res.User.MustChangePassword {
		fmt.Fprintln(out, "this is a temporary password: run `smartcrm auth change-password` before anything else")
	}
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	if api.loadToken() != "" {
		if err := api.do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
			return err
		}
	}
	if err := api.clearToken(); err != nil {
		return err
	}
	fmt.Fprintln(out, "logged out")
	return nil
}

type MeCmd struct{}

func (c *MeCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	var u domain.User
	if err := api.do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", u.ID)
	fmt.Fprintf(w, "EMAIL\t%s\n", u.Email)
	fmt.Fprintf(w, "NAME\t%s\n", u.Name())
	fmt.Fprintf(w, "ROLE\t%s\n", u.Role)
	if u.OrganizationID != nil {
		fmt.Fprintf(w, "ORGANIZATION\t%s\n", u.OrganizationID)
	}
	return w.Flush()
}

type ChangePasswordCmd struct {
	Current string `help:"Current password." required:""`
	New     string `help:"New password." required:""`
}

func (c *ChangePasswordCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	body := map[string]string{"current_password": c.Current, "new_password": c.New}
	if err := api.do(ctx, http.MethodPost, "/auth/change-password", body, nil); err != nil {
		return err
	}
	fmt.Fprintln(out, "password changed")
	return nil
}

type LeadsCmd struct {
	List   LeadsListCmd   `cmd:"" help:"List leads."`
	Create LeadsCreateCmd `cmd:"" help:"Create a lead."`
	Update LeadsUpdateCmd `cmd:"" help:"Change a lead's status or assignee."`
	Score  LeadsScoreCmd  `cmd:"" help:"Recompute a lead's score."`
	Delete LeadsDeleteCmd `cmd:"" help:"Delete a lead."`
}

type LeadsListCmd struct {
	Status string `help:"Only leads in this status." enum:",new,contacted,converted,closed" default:""`
}

func (c *LeadsListCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	path := "/leads"
	if c.Status != "" {
		path += "?status=" + url.QueryEscape(c.Status)
	}
	var leads []domain.Lead
	if err := api.do(ctx, http.MethodGet, path, nil, &leads); err != nil {
		return err
	}
	printLeads(out, leads...)
	return nil
}

type LeadsCreateCmd struct {
	Name       string `help:"Lead name." required:""`
	Email      string `help:"Lead email."`
	Phone      string `help:"Lead phone."`
	AssignedTo string `help:"User id of the assignee."`
}

func (c *LeadsCreateCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	body := map[string]string{"name": c.Name, "email": c.Email, "phone": c.Phone, "assigned_to": c.AssignedTo}
	var lead domain.Lead
	if err := api.do(ctx, http.MethodPost, "/leads", body, &lead); err != nil {
		return err
	}
	printLeads(out, lead)
	return nil
}

type LeadsUpdateCmd struct {
	ID         string `arg:"" help:"Lead id."`
	Status     string `help:"New status." enum:",new,contacted,converted,closed" default:""`
	AssignedTo string `help:"User id of the new assignee." xor:"assignee"`
	Unassign   bool   `help:"Remove the current assignee." xor:"assignee"`
}

func (c *LeadsUpdateCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	body := map[string]string{}
	if c.Status != "" {
		body["status"] = c.Status
	}
	if c.AssignedTo != "" {
		body["assigned_to"] = c.AssignedTo
	}
	if c.Unassign {
		body["assigned_to"] = ""
	}
	var lead domain.Lead
	if err := api.do(ctx, http.MethodPut, "/leads/"+url.PathEscape(c.ID), body, &lead); err != nil {
		return err
	}
	printLeads(out, lead)
	return nil
}

type LeadsScoreCmd struct {
	ID string `arg:"" help:"Lead id."`
}

func (c *LeadsScoreCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	var lead domain.Lead
	if err := api.do(ctx, http.MethodPost, "/leads/"+url.PathEscape(c.ID)+"/score", nil, &lead); err != nil {
		return err
	}
	printLeads(out, lead)
	return nil
}

type LeadsDeleteCmd struct {
	ID string `arg:"" help:"Lead id."`
}

func (c *LeadsDeleteCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	if err := api.do(ctx, http.MethodDelete, "/leads/"+url.PathEscape(c.ID), nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(out, "lead %s deleted\n", c.ID)
	return nil
}

func printLeads(out io.Writer, leads ...domain.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSCORE\tCATEGORY\tCREATED")
	for _, l := range leads {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%s\t%s\n", l.ID, l.Name, l.Status, l.Score, l.Category, l.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()
}

type ComplaintsCmd struct {
	List     ComplaintsListCmd     `cmd:"" help:"List complaints."`
	Create   ComplaintsCreateCmd   `cmd:"" help:"Record a complaint."`
	Update   ComplaintsUpdateCmd   `cmd:"" help:"Change a complaint's status or priority."`
	Classify ComplaintsClassifyCmd `cmd:"" help:"Classify a complaint from its text."`
}

type ComplaintsListCmd struct {
	Status string `help:"Only complaints in this status." enum:",open,in_progress,closed" default:""`
}

func (c *ComplaintsListCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	path := "/complaints"
	if c.Status != "" {
		path += "?status=" + url.QueryEscape(c.Status)
	}
	var complaints []domain.Complaint
	if err := api.do(ctx, http.MethodGet, path, nil, &complaints); err != nil {
		return err
	}
	printComplaints(out, complaints...)
	return nil
}

type ComplaintsCreateCmd struct {
	Title       string `help:"Short summary." required:""`
	Description string `help:"Full description."`
	Type        string `help:"Free-form complaint type."`
	Priority    string `help:"Priority." enum:",low,medium,high" default:""`
	Customer    string `help:"User id of the customer the complaint is for."`
}

func (c *ComplaintsCreateCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	body := map[string]string{
		"title":       c.Title,
		"description": c.Description,
		"type":        c.Type,
		"priority":    c.Priority,
		"customer_id": c.Customer,
	}
	var complaint domain.Complaint
	if err := api.do(ctx, http.MethodPost, "/complaints", body, &complaint); err != nil {
		return err
	}
	printComplaints(out, complaint)
	return nil
}

type ComplaintsUpdateCmd struct {
	ID       string `arg:"" help:"Complaint id."`
	Status   string `help:"New status." enum:",open,in_progress,closed" default:""`
	Priority string `help:"New priority." enum:",low,medium,high" default:""`
}

func (c *ComplaintsUpdateCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	body := map[string]string{}
	if c.Status != "" {
		body["status"] = c.Status
	}
	if c.Priority != "" {
		body["priority"] = c.Priority
	}
	var complaint domain.Complaint
	if err := api.do(ctx, http.MethodPut, "/complaints/"+url.PathEscape(c.ID), body, &complaint); err != nil {
		return err
	}
	printComplaints(out, complaint)
	return nil
}

type ComplaintsClassifyCmd struct {
	ID string `arg:"" help:"Complaint id."`
}

func (c *ComplaintsClassifyCmd) Run(ctx context.Context, api *apiClient, out io.Writer) error {
	var complaint domain.Complaint
	if err := api.do(ctx, http.MethodPost, "/complaints/"+url.PathEscape(c.ID)+"/classify", nil, &complaint); err != nil {
		return err
	}
	printComplaints(out, complaint)
	return nil
}

func printComplaints(out io.Writer, complaints ...domain.Complaint) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tCLASSIFICATION")
	for _, c := range complaints {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Title, c.Status, c.Priority, c.Classification)
	}
	w.Flush()
}
