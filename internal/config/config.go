package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pinco2025/prepAIred-backend/internal/analytics"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	DocDriver   string // fs|github
	DocBasePath string // for fs
	GitHubToken string
	GitHubRepo  string // owner/name

	AuthJWTSecret string
	TopicMapPath  string
	SubjectGroups []analytics.SubjectGroup

	EnableDevLogin bool
	EnablePayments bool

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string
}

func FromEnv() (Config, error) {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	groups, err := ParseSubjectGroups(os.Getenv("SUBJECT_GROUPS"))
	if err != nil {
		return Config{}, err
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		DocDriver:   envOr("DOC_DRIVER", "fs"),
		DocBasePath: envOr("DOC_BASE_PATH", "./data"),
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
		GitHubRepo:  os.Getenv("GITHUB_REPO"),

		AuthJWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		TopicMapPath:  os.Getenv("TOPIC_MAP_PATH"),
		SubjectGroups: groups,

		EnableDevLogin: envBool("ENABLE_DEV_LOGIN", mode == ModeOffline),
		EnablePayments: envBool("ENABLE_PAYMENTS", mode == ModeOnline),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),

		AdminUser:     envOr("ADMIN_USER", "admin"),
		AdminPassHash: envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),

		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://app.prepaired.in"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),
	}, nil
}

// ParseSubjectGroups reads "name:idx,idx;name:idx,..." into group
// declarations. Empty input yields the default grouping.
func ParseSubjectGroups(v string) ([]analytics.SubjectGroup, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return analytics.DefaultSubjectGroups(), nil
	}
	var groups []analytics.SubjectGroup
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, idxs, ok := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("config: bad subject group %q, want name:idx,idx", part)
		}
		g := analytics.SubjectGroup{Name: name}
		for _, s := range strings.Split(idxs, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("config: bad section index %q in group %q", s, name)
			}
			g.Sections = append(g.Sections, n)
		}
		groups = append(groups, g)
	}
	if err := analytics.ValidateGroups(groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
