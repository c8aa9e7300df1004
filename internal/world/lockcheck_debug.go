//go:build debuglock

package world

const checkLockOwner = true
