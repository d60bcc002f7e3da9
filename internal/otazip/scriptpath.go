package otazip

// ScriptPath is the fixed archive location the serialized installer
// script is embedded at (spec.md section 6.3: "the installer script
// (embedded by append_to_zip)"), under META-INF/ like ManifestPath
// (though in com/google/android rather than ManifestPath's com/android).
const ScriptPath = "META-INF/com/google/android/update-script.json"
