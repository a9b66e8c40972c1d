package domain

import "time"

// Digest is a generated summary document produced from one pipeline
// run. EmailSent and EmailError are mutually exclusive; both unset
// means delivery is still pending.
type Digest struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Body         string    `db:"body"`
	Excerpt      string    `db:"excerpt"`
	ArticleCount int       `db:"article_count"`
	SourceCount  int       `db:"source_count"`
	EmailSent    bool      `db:"email_sent"`
	EmailError   string    `db:"email_error"`
	GeneratedAt  time.Time `db:"generated_at"`
	FeedIDs      []string  `db:"-"`
}

// MailSecurity selects the SMTP transport mode.
type MailSecurity string

const (
	MailSecurityTLS  MailSecurity = "tls"
	MailSecuritySSL  MailSecurity = "ssl"
	MailSecurityNone MailSecurity = "none"
)

// MailSettings is the singleton outbound mail configuration.
type MailSettings struct {
	Host            string       `db:"host"`
	Port            int          `db:"port"`
	Username        string       `db:"username"`
	Password        string       `db:"password"`
	Security        MailSecurity `db:"security"`
	FromAddress     string       `db:"from_address"`
	Recipients      []string     `db:"-"`
	SubjectTemplate string       `db:"subject_template"`
}

// Email is one outbound message with both HTML and plain-text bodies.
type Email struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}
