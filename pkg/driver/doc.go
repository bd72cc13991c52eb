// Package driver installs Windows kernel drivers as on-demand services and
// talks to them over their device node.
//
// The lifecycle is strictly ordered:
//
//	desc, err := driver.NewBuilder(id).Binary(image).Build()
//	services.Install(desc)   // register + start
//	channel.Open(id)         // \\.\<id>
//	channel.IO(code, input)  // 4 byte request, 8 byte reply
//	channel.Close()
//	services.Uninstall(id)   // stop + delete
//
// Every successful Install and Open must be paired with Uninstall and Close
// on all exit paths. None of the types lock internally.
package driver
