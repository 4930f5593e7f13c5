// Package main generates an operator signing key: a fresh secp256k1
// private key printed as hex together with the address every signature
// made with it will recover to.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"

	"credit-attestor/internal/signer"
)

func main() {
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	key, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}

	privateHex := fmt.Sprintf("%x", crypto.FromECDSA(key))
	// Derive the address through the same path the service uses.
	address := signer.NewFromKey(key).Address().Hex()

	if *outputJSON {
		out := struct {
			PrivateKey string `json:"privateKey"`
			Address    string `json:"address"`
		}{privateHex, address}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Operator key generated. Keep the private key secret.")
	fmt.Printf("  OPERATOR_KEY=%s\n", privateHex)
	fmt.Printf("  address:     %s\n", address)
}
