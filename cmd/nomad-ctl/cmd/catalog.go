package cmd

import "github.com/cljohnso/terracotta-platform/internal/settingcatalog"

// catalogSingleton is the setting catalog every SettingChange constructed by
// this command tree validates against; the process never needs more than
// one, and it never changes at runtime.
var catalogSingleton = settingcatalog.NewCatalog()
