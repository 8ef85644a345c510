// Package turnlock guards conversations against concurrent turns.
//
// A Guard hands out one lease per conversation ID. A lease lasts until the
// turn that took it releases it, however long that turn runs. Leases live
// in memory only, so they end with the process. Drain lets a shutting-down
// server wait for running turns before closing shared resources.
package turnlock
