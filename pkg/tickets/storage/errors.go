package storage

import "fmt"

func errDuplicate(id string) error {
	return fmt.Errorf("ticket %s already stored", id)
}
