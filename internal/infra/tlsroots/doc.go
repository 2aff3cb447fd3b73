// Package tlsroots builds the trust store for connections to the auth
// service: the system roots plus an optional PEM bundle (tls.ca).
package tlsroots
