package store

import "fmt"

const (
	keyContainerPrefix  = "stow:container:"
	keyContainerSet     = "stow:containers"
	keyItemPrefix       = "stow:item:"
	keyItemSet          = "stow:items"
	keyItemByCtnrPrefix = "stow:items:by_container:"
	keyItemByNamePrefix = "stow:items:by_name:"
	keyItemWasteSet     = "stow:items:waste"
	keyLogPrefix        = "stow:log:"
	keyLogZSet          = "stow:logs"
	keyLogSeq           = "stow:logs:seq"
)

func containerKey(id string) string  { return keyContainerPrefix + id }
func itemKey(id string) string       { return keyItemPrefix + id }
func itemByCtnrKey(id string) string { return keyItemByCtnrPrefix + id }
func itemByNameKey(n string) string  { return keyItemByNamePrefix + n }
func logKey(id string) string        { return keyLogPrefix + id }

func logID(seq int64) string { return fmt.Sprintf("log-%d", seq) }
