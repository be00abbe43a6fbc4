package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/antispam"
	"github.com/mikey/comment-spam-gateway/internal/config"
	"github.com/mikey/comment-spam-gateway/internal/core"
	"github.com/mikey/comment-spam-gateway/internal/logging"
	"github.com/mikey/comment-spam-gateway/internal/transport"
	"github.com/mikey/comment-spam-gateway/internal/whitelist"
)

var (
	// Service flags
	apiKey          = flag.String("api-key", "", "Credential for the classification service")
	serviceDomain   = flag.String("service-domain", "api.antispam.typepad.com", "Classification service domain")
	servicePort     = flag.Int("service-port", 80, "Classification service port")
	connectTimeout  = flag.Duration("connect-timeout", 10*time.Second, "Connect timeout")
	protocolVersion = flag.String("protocol-version", "1.1", "Service protocol version")

	// Site flags
	siteURL = flag.String("site-url", "http://localhost", "Site root URL sent as blog identity")

	// Action flags
	verifyKey        = flag.String("verify-key", "", "Verify a credential instead of checking a comment")
	whitelistDomains = flag.String("whitelist", "", "Comma-separated list of whitelisted author email domains")

	// Input flags
	inputFile  = flag.String("file", "", "Input comment JSON file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

// commentInput is the JSON shape accepted on stdin or via -file.
type commentInput struct {
	PostID         int64             `json:"post_id"`
	Author         string            `json:"author"`
	AuthorEmail    string            `json:"author_email"`
	AuthorURL      string            `json:"author_url"`
	AuthorIP       string            `json:"author_ip"`
	UserAgent      string            `json:"user_agent"`
	Referrer       string            `json:"referrer"`
	Content        string            `json:"content"`
	Type           string            `json:"type"`
	ArticleDate    string            `json:"article_date"`
	Environ        map[string]string `json:"environ"`
	PostModifiedAt string            `json:"post_modified_at"`
}

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	svcCfg, err := cfg.GetService()
	if err != nil {
		logger.Fatal("Invalid service configuration", zap.Error(err))
	}
	site := cfg.GetSite()

	tc := transport.NewClient(svcCfg.Port, svcCfg.ConnectTimeout, site.UserAgent(), site.Charset, logger)
	client := antispam.NewClient(tc, core.NormalizeCredential(svcCfg.APIKey),
		svcCfg.Domain, svcCfg.ProtocolVersion, site.URL, logger)

	ctx := context.Background()

	// Key verification mode
	if *verifyKey != "" {
		status := client.VerifyKey(ctx, core.NormalizeCredential(*verifyKey))
		fmt.Printf("Key status: %s\n", status)
		if status == core.KeyFailed {
			fmt.Println("Verification failed; this indicates a connectivity or configuration problem, not a bad key.")
		}
		return
	}

	if core.NormalizeCredential(svcCfg.APIKey) == "" {
		logger.Fatal("No credential configured; pass -api-key or use -verify-key")
	}

	// Parse whitelisted domains
	var domains []string
	if *whitelistDomains != "" {
		domains = strings.Split(*whitelistDomains, ",")
	} else {
		domains = cfg.GetStringSlice("spam.whitelisted_domains")
	}
	checker := whitelist.NewChecker(domains, logger)

	// Read comment from file or stdin
	var in io.Reader = os.Stdin
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		in = file
		logger.Info("Reading comment from file", zap.String("file", *inputFile))
	} else {
		logger.Info("Reading comment from stdin")
	}

	var input commentInput
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		logger.Fatal("Failed to parse comment JSON", zap.Error(err))
	}

	comment := &core.Comment{
		PostID:      input.PostID,
		Author:      input.Author,
		AuthorEmail: input.AuthorEmail,
		AuthorURL:   input.AuthorURL,
		AuthorIP:    input.AuthorIP,
		UserAgent:   input.UserAgent,
		Referrer:    input.Referrer,
		Content:     input.Content,
		Type:        core.CommentType(input.Type),
	}
	if comment.Type == "" {
		comment.Type = core.TypeComment
	}

	var post *core.Post
	if input.ArticleDate != "" {
		published, err := time.Parse(time.RFC3339, input.ArticleDate)
		if err != nil {
			logger.Fatal("Failed to parse article_date (want RFC3339)", zap.Error(err))
		}
		post = &core.Post{ID: input.PostID, PublishedAt: published, ModifiedAt: published}
		if input.PostModifiedAt != "" {
			if post.ModifiedAt, err = time.Parse(time.RFC3339, input.PostModifiedAt); err != nil {
				logger.Fatal("Failed to parse post_modified_at (want RFC3339)", zap.Error(err))
			}
		}
	}

	origin := &core.OriginContext{
		RemoteAddr: input.AuthorIP,
		UserAgent:  input.UserAgent,
		Referrer:   input.Referrer,
		Environ:    input.Environ,
	}

	// Print comment summary
	fmt.Printf("\n=== Comment Summary ===\n")
	fmt.Printf("Author: %s <%s>\n", comment.Author, comment.AuthorEmail)
	fmt.Printf("Post ID: %d\n", comment.PostID)
	fmt.Printf("Type: %s\n", comment.Type)
	fmt.Printf("Content length: %d bytes\n", len(comment.Content))
	fmt.Printf("\n=== Analysis ===\n")

	startTime := time.Now()

	if checker.IsWhitelisted(comment.AuthorEmail) {
		fmt.Printf("\n=== Results ===\n")
		fmt.Printf("Verdict: ham (author domain is whitelisted)\n")
		fmt.Printf("Processing time: %v\n", time.Since(startTime))
		return
	}

	verdict := client.CheckComment(ctx, comment, post, origin)
	duration := time.Since(startTime)

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Verdict: %s\n", verdict)
	if verdict == core.VerdictUnreachable {
		fmt.Println("The classification service could not be reached; the comment would be admitted unclassified.")
	}
	fmt.Printf("Processing time: %v\n", duration)
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("service.api_key", *apiKey)
	v.Set("service.domain", *serviceDomain)
	v.Set("service.port", *servicePort)
	v.Set("service.connect_timeout", connectTimeout.String())
	v.Set("service.protocol_version", *protocolVersion)
	v.Set("site.url", *siteURL)

	return config.NewFromViper(v)
}
