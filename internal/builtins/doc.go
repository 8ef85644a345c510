// Package builtins provides the in-process tool packs offered to the model.
//
// # Tool Packs
//
// Notes Pack (builtin:notes):
//
//   - note_set: Store a note
//   - note_get: Retrieve a note
//   - note_list: List all note keys
//   - note_delete: Delete a note
//
// Notes are scoped to the conversation that owns the running turn.
//
// Clock Pack (builtin:clock):
//
//   - current_time: Current date and time, optionally in a timezone
//
// # Registration
//
//	registry := packs.NewRegistry(logger)
//	registry.RegisterBuiltinPack(builtins.NotesPack(store))
//	registry.RegisterBuiltinPack(builtins.ClockPack(nil))
package builtins
