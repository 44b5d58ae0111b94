// Package loadorder builds FormID registry metadata from load order files.
//
// Three sources are understood: the game's plugins.txt, a Mod Organizer
// modlist.txt that decides which mod folder a plugin is taken from, and a
// YAML manifest for setups that list plugin paths directly. Only each
// plugin's TES4 header is read here, for its masters and light flag.
package loadorder
