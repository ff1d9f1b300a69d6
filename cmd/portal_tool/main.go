package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"medimind-rest/apiclient"
)

/*

 CLI over the running portal API. Authenticates, picks the dashboard for
 the caller's role, and prints timelines / report details.

 go run ./cmd/portal_tool \
 -server=http://localhost:8000 \
 -token=$DEV_BEARER \
 -action=timeline

 go run ./cmd/portal_tool \
 -action=timeline -patient=uid123 -limit=20   # doctor session

 go run ./cmd/portal_tool \
 -action=report -patient=uid123 -report=abc

 go run ./cmd/portal_tool \
 -action=upload -file=scan.pdf                # patient session

*/

func main() {
	var (
		server   = flag.String("server", "http://localhost:8000", "portal base URL")
		token    = flag.String("token", os.Getenv("MEDIMIND_TOKEN"), "bearer token (Firebase ID token or dev bearer)")
		action   = flag.String("action", "timeline", "action: timeline|report|upload|patients")
		patient  = flag.String("patient", "", "patient user ID (doctor sessions; defaults to self)")
		reportID = flag.String("report", "", "report ID for -action=report")
		filePath = flag.String("file", "", "local file for -action=upload")
		limit    = flag.Int("limit", 0, "max reports to list (0 = server default)")
	)
	flag.Parse()

	if *token == "" {
		log.Fatal("-token or MEDIMIND_TOKEN is required")
	}

	ctx := context.Background()
	client := apiclient.New(*server)

	sess, err := client.Login(ctx, *token)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	log.Printf("logged in as %s (%s)", sess.UserID, sess.Role)

	dash, err := apiclient.DashboardFor(client, sess)
	if err != nil {
		log.Fatalf("dashboard: %v", err)
	}

	switch *action {
	case "timeline":
		reports, err := dash.Timeline(ctx, *patient, *limit)
		if err != nil {
			log.Fatalf("timeline: %v", err)
		}
		for _, r := range reports {
			fmt.Printf("%s  %s  %s\n", r.UploadedAt, r.ReportID, r.Filename)
		}

	case "report":
		if *reportID == "" {
			log.Fatal("-report is required")
		}
		owner := *patient
		if owner == "" {
			owner = sess.UserID
		}
		rep, err := client.GetReport(ctx, sess, owner, *reportID)
		if err != nil {
			log.Fatalf("report: %v", err)
		}
		if rep == nil {
			log.Fatal("report not found")
		}
		fmt.Printf("%s (%s)\n\n", rep.Filename, rep.UploadedAt)
		fmt.Println(rep.AIAnalysis)
		if rep.FileURL != "" {
			fmt.Printf("\ndownload: %s\n", rep.FileURL)
		}

	case "upload":
		if *filePath == "" {
			log.Fatal("-file is required")
		}
		pd, ok := dash.(*apiclient.PatientDashboard)
		if !ok {
			log.Fatal("upload requires a patient session")
		}
		res, err := pd.Upload(ctx, *filePath)
		if err != nil {
			log.Fatalf("upload: %v", err)
		}
		fmt.Printf("uploaded %s as report %s\n\n", res.Filename, res.ReportID)
		fmt.Println(res.AIAnalysis)

	case "patients":
		dd, ok := dash.(*apiclient.DoctorDashboard)
		if !ok {
			log.Fatal("patients requires a doctor session")
		}
		roster, err := dd.Patients(ctx)
		if err != nil {
			log.Fatalf("patients: %v", err)
		}
		for _, p := range roster {
			fmt.Printf("%s  %s  %s\n", p.UserID, p.Name, p.Email)
		}

	default:
		log.Fatalf("unknown action %q", *action)
	}
}
