package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report is a read-only summary of the protections an engine runs with.
type Report struct {
	SigningAlgorithm     string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	RevocationTTL        time.Duration
	RevocationCovers     bool
	RevocationCacheOn    bool
	Argon2               PasswordReport
	Argon2AtLeastDefault bool
	BackupCodeCount      int
	BackupCodeLogin      bool
	RehashOnLogin        bool
	OAuthProviders       []string
	LoginAttempts        int
	LoginWindow          time.Duration
	TwoFactorAttempts    int
	TwoFactorWindow      time.Duration
	AuditEnabled         bool
	AuditMayDrop         bool
	Warnings             []string
}

type ReportInput struct {
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	RevocationTTL       time.Duration
	RevocationCacheSize int
	Password            PasswordReport
	MinimumPassword     PasswordReport
	BackupCodeCount     int
	BackupCodeLogin     bool
	RehashOnLogin       bool
	OAuthProviders      []string
	LoginAttempts       int
	LoginWindow         time.Duration
	TwoFactorAttempts   int
	TwoFactorWindow     time.Duration
	AuditEnabled        bool
	AuditDropIfFull     bool
}

func BuildReport(input ReportInput) Report {
	longest := input.RefreshTTL
	if input.AccessTTL > longest {
		longest = input.AccessTTL
	}
	strongHash := input.Password.Memory >= input.MinimumPassword.Memory &&
		input.Password.Time >= input.MinimumPassword.Time &&
		input.Password.KeyLength >= input.MinimumPassword.KeyLength

	r := Report{
		SigningAlgorithm:     "HS256",
		AccessTTL:            input.AccessTTL,
		RefreshTTL:           input.RefreshTTL,
		RevocationTTL:        input.RevocationTTL,
		RevocationCovers:     input.RevocationTTL >= longest,
		RevocationCacheOn:    input.RevocationCacheSize > 0,
		Argon2:               input.Password,
		Argon2AtLeastDefault: strongHash,
		BackupCodeCount:      input.BackupCodeCount,
		BackupCodeLogin:      input.BackupCodeLogin,
		RehashOnLogin:        input.RehashOnLogin,
		OAuthProviders:       input.OAuthProviders,
		LoginAttempts:        input.LoginAttempts,
		LoginWindow:          input.LoginWindow,
		TwoFactorAttempts:    input.TwoFactorAttempts,
		TwoFactorWindow:      input.TwoFactorWindow,
		AuditEnabled:         input.AuditEnabled,
		AuditMayDrop:         input.AuditEnabled && input.AuditDropIfFull,
	}

	if !r.RevocationCovers {
		r.Warnings = append(r.Warnings, "revocation entries expire before the tokens they cover")
	}
	if !strongHash {
		r.Warnings = append(r.Warnings, "argon2id parameters are below the production defaults")
	}
	if input.AccessTTL > time.Hour {
		r.Warnings = append(r.Warnings, "access tokens live longer than one hour")
	}
	if r.AuditMayDrop {
		r.Warnings = append(r.Warnings, "audit events are dropped when the buffer is full")
	}
	return r
}
