//go:build !debuglock

package world

const checkLockOwner = false
