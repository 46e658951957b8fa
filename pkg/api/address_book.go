package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// addressBookPath is where the operator's name-to-address book is
// persisted, separate from the node's own snapshot.
const addressBookPath = "configs/address_book.json"

// AddressBook maps a human-assigned label to a hex-encoded public-key
// hash, entirely client-maintained: the node never writes to it except
// in response to a save request.
type AddressBook map[string]string

func loadAddressBook() AddressBook {
	data, err := os.ReadFile(addressBookPath)
	if err != nil {
		return AddressBook{}
	}
	var book AddressBook
	if err := json.Unmarshal(data, &book); err != nil {
		return AddressBook{}
	}
	return book
}

func (b AddressBook) save() error {
	if err := os.MkdirAll(filepath.Dir(addressBookPath), 0o755); err != nil {
		return fmt.Errorf("api: create address book directory: %w", err)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("api: marshal address book: %w", err)
	}
	if err := os.WriteFile(addressBookPath, data, 0o644); err != nil {
		return fmt.Errorf("api: write address book: %w", err)
	}
	return nil
}
