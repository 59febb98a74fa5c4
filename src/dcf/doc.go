// Package dcf assembles a complete DCF node from a configuration: the config
// store, codec, built-in network, routing layer, plugin manager, node runtime
// and HTTP service.
//
//	conf, err := config.Load("dcf.toml")
//	engine := dcf.NewDCF(conf)
//	if err := engine.Init(); err != nil { ... }
//	engine.Run()
package dcf
