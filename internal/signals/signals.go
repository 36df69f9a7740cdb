// Package signals turns raw signup requests into normalized fraud signals.
//
// Extraction is pure: no I/O, no error paths. Malformed input yields
// zero-value or "unknown" signals, never a failure. The scorer weights
// "unknown" separately from "known bad", so dropping a field would lose
// information.
package signals

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("signal record not found")

// NetworkClass classifies the origin of a client IP.
type NetworkClass string

const (
	ClassResidential NetworkClass = "residential"
	ClassHosting     NetworkClass = "hosting"
	ClassDatacenter  NetworkClass = "datacenter"
	ClassProxy       NetworkClass = "proxy"
	ClassVPN         NetworkClass = "vpn"
	ClassUnknown     NetworkClass = "unknown"
)

// CaptchaOutcome is the result of captcha verification.
type CaptchaOutcome string

const (
	CaptchaSuccess CaptchaOutcome = "success"
	CaptchaFail    CaptchaOutcome = "fail"
	CaptchaUnknown CaptchaOutcome = "unknown" // provider timeout or transport error
)

// NetworkSignals describe the requester's network origin.
type NetworkSignals struct {
	IP    string       `json:"ip"`
	ASN   int64        `json:"asn"`
	Org   string       `json:"org"`
	Class NetworkClass `json:"class"`
}

// DeviceSignals describe the requester's client device.
type DeviceSignals struct {
	UserAgent             string  `json:"userAgent"`
	Browser               string  `json:"browser"` // family: "chrome", "firefox", ... "unknown"
	OS                    string  `json:"os"`      // family: "windows", "macos", ... "unknown"
	FingerprintID         string  `json:"fingerprintId"` // opaque, may be empty
	FingerprintConfidence float64 `json:"fingerprintConfidence"`
}

// EmailSignals describe the signup email address.
type EmailSignals struct {
	Address      string `json:"address"` // normalized (lower-cased, trimmed)
	LocalPart    string `json:"localPart"`
	Domain       string `json:"domain"`
	IsDisposable bool   `json:"isDisposable"`
	HasValidMX   bool   `json:"hasValidMx"`
}

// CaptchaSignals describe the captcha verification result.
type CaptchaSignals struct {
	Token      string         `json:"-"` // never persisted or logged
	Outcome    CaptchaOutcome `json:"outcome"`
	AbuseScore float64        `json:"abuseScore"` // provider-reported, [0,1]
	HasScore   bool           `json:"hasScore"`
}

// Set bundles all signals for one signup attempt. Immutable once captured.
type Set struct {
	Network NetworkSignals `json:"network"`
	Device  DeviceSignals  `json:"device"`
	Email   EmailSignals   `json:"email"`
	Captcha CaptchaSignals `json:"captcha"`
}

// Record is the persisted snapshot of a finalized attempt's signals.
// Created by ValidateSignup, held in memory until FinalizeSignup persists it.
type Record struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Signals   Set       `json:"signals"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists finalized signal snapshots.
type Store interface {
	Record(ctx context.Context, rec *Record) error
	GetByAccount(ctx context.Context, accountID string) (*Record, error)
}
