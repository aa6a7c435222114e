// Package cli provides the tutoria command-line interface.
//
// The CLI signs an operator in against the auth API and keeps the session
// in the same storage the dashboard server uses, so both can share one
// login. Every command restores the stored session first.
//
// # Commands
//
//	tutoria login -username prof            # password from -password or $TUTORIA_PASSWORD
//	tutoria whoami [-json] [-fetch]
//	tutoria can -course c1 update course    # explain a permission decision
//	tutoria pages [-path /analytics]
//	tutoria refresh
//	tutoria reset-password -email prof@uni.edu
//	tutoria logout
//
// Configuration comes from the file named by TUTORIA_CONFIG and the
// TUTORIA_* environment variables; see package config.
package cli
