package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/infra/config"
)

// runEncrypt prints an "enc:" value for an API key, ready to paste into
// the config file. The key comes from the first argument or, when absent,
// the first line of in.
func runEncrypt(args []string, passphrase string, in io.Reader, out io.Writer) error {
	if passphrase == "" {
		return domain.NewDomainError("encrypt", domain.ErrEncryption, "PORTFOLIO_CONFIG_KEY is not set")
	}

	var plaintext string
	if words := positional(args); len(words) > 0 {
		plaintext = words[0]
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read key: %w", err)
		}
		plaintext = strings.TrimSpace(line)
	}
	if plaintext == "" {
		return domain.NewDomainError("encrypt", domain.ErrInvalidInput, "no value to encrypt")
	}

	enc, err := config.EncryptValue(plaintext, passphrase)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEncryption, err)
	}
	fmt.Fprintln(out, "enc:"+enc)
	return nil
}
