package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"classroom/internal/auth"
	"classroom/internal/config"
	"classroom/internal/roster"
	"classroom/internal/schedule"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	cfg        config.App
	out        io.Writer
	openRoster func(ctx context.Context) (*roster.Resolver, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  token -email EMAIL [-uid UID] [-ttl 12h]                      - mint a teacher token (AUTH_MODE=jwt)")
	fmt.Fprintln(cli.out, "  schedule -level A1 -start YYYY-MM-DD [-holidays d1,d2] [-format txt|json|xlsx] [-o FILE]")
	fmt.Fprintln(cli.out, "  roster -class CLASS_ID                                        - list the resolved roster")
	fmt.Fprintln(cli.out, "  classes                                                       - list selectable classes")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	tokenCmd := cli.newFlagSet("token")
	tokenEmail := tokenCmd.String("email", "", "Teacher email, must be on the allowlist to pass teacher auth.")
	tokenUID := tokenCmd.String("uid", "", "Subject of the token. Defaults to the email.")
	tokenTTL := tokenCmd.Duration("ttl", cli.cfg.AccessTTL, "Token lifetime.")

	scheduleCmd := cli.newFlagSet("schedule")
	scheduleLevel := scheduleCmd.String("level", "", "Course level (A1, A2 or B1).")
	scheduleStart := scheduleCmd.String("start", "", "First possible teaching day, YYYY-MM-DD.")
	scheduleHolidays := scheduleCmd.String("holidays", "", "Comma separated holiday dates.")
	scheduleWeekdays := scheduleCmd.String("weekdays", "", "Comma separated teaching weekdays. Defaults to Monday,Tuesday,Wednesday.")
	scheduleFormat := scheduleCmd.String("format", "txt", "Output format: txt, json or xlsx.")
	scheduleOut := scheduleCmd.String("o", "", "Write to FILE instead of stdout.")

	rosterCmd := cli.newFlagSet("roster")
	rosterClass := rosterCmd.String("class", "", "Class id.")

	classesCmd := cli.newFlagSet("classes")

	switch args[1] {
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUID, *tokenEmail, *tokenTTL)
	case "schedule":
		if err := scheduleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *scheduleLevel == "" || *scheduleStart == "" {
			scheduleCmd.Usage()
			return errHelp
		}
		p := schedule.Params{
			Level:           strings.ToUpper(*scheduleLevel),
			StartDate:       *scheduleStart,
			HolidayDates:    splitList(*scheduleHolidays),
			DefaultWeekdays: splitList(*scheduleWeekdays),
		}
		return cli.schedule(p, *scheduleFormat, *scheduleOut)
	case "roster":
		if err := rosterCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rosterClass == "" {
			rosterCmd.Usage()
			return errHelp
		}
		return cli.roster(ctx, *rosterClass)
	case "classes":
		if err := classesCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.classes(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) token(uid, email string, ttl time.Duration) error {
	if cli.cfg.AuthMode != "jwt" {
		return fmt.Errorf("tokens are only accepted with AUTH_MODE=jwt (got %q)", cli.cfg.AuthMode)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if uid == "" {
		uid = email
	}
	if !auth.NewAllowlist(cli.cfg.TeacherEmails).Allows(email) {
		fmt.Fprintf(cli.out, "warning: %s is not in attendance.teacher_emails\n", email)
	}
	pair, err := auth.Issue(uid, email, "teacher", cli.cfg.JWTIssuer, cli.cfg.JWTSigningKey, ttl, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, pair.AccessToken)
	return nil
}

func (cli *commandLine) schedule(p schedule.Params, format, path string) error {
	if _, err := schedule.ParseDate(p.StartDate); err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	rows, err := schedule.Generate(p)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("unknown level %q, expected one of %s", p.Level, strings.Join(schedule.Levels(), ", "))
	}

	w := cli.out
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "txt":
		_, err = io.WriteString(w, schedule.BuildExports(p.Level, p.StartDate, p.HolidayDates, rows).TXT)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(schedule.BuildExports(p.Level, p.StartDate, p.HolidayDates, rows).JSON)
	case "xlsx":
		if path == "" {
			return errors.New("xlsx output needs -o FILE")
		}
		err = schedule.WriteXLSX(w, p.Level, rows)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return err
}

func (cli *commandLine) roster(ctx context.Context, classID string) error {
	r, err := cli.openRoster(ctx)
	if err != nil {
		return err
	}
	students, err := r.ResolveStudents(ctx, classID)
	if err != nil {
		return err
	}
	for _, s := range students {
		fmt.Fprintf(cli.out, "%s\t%s\t%s\t%s\n", s.Identity(), s.Name, s.Email, s.Source)
	}
	fmt.Fprintf(cli.out, "%d student(s)\n", len(students))
	return nil
}

func (cli *commandLine) classes(ctx context.Context) error {
	r, err := cli.openRoster(ctx)
	if err != nil {
		return err
	}
	classes, err := r.ListClasses(ctx)
	if err != nil {
		return err
	}
	for _, c := range classes {
		fmt.Fprintf(cli.out, "%s\t%s\n", c.ClassID, c.Name)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
